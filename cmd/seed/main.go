package main

import (
	"fmt"
	"os"
	"time"

	"github.com/NishadApi25/final-year-project/internal/authz"
	"github.com/NishadApi25/final-year-project/internal/config"
	"github.com/NishadApi25/final-year-project/internal/constants"
	"github.com/NishadApi25/final-year-project/internal/logger"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/repository"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

type seedProduct struct {
	Name     string
	Category string
	Price    string
	Image    string
}

type seedAdmin struct {
	Username string
	Role     string
	IsSuper  bool
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	authzService, err := authz.NewService(models.DB)
	if err != nil {
		stdLog.Fatalf("Failed to init authz: %v", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		stdLog.Fatalf("Failed to bootstrap roles: %v", err)
	}

	// 管理员
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}
	hash, err := service.HashPassword(password)
	if err != nil {
		stdLog.Fatalf("Failed to hash password: %v", err)
	}
	adminRepo := repository.NewAdminRepository(models.DB)
	admins := []seedAdmin{
		{Username: "admin", Role: authz.RoleSuperAdmin, IsSuper: true},
		{Username: "finance", Role: authz.RoleFinance},
		{Username: "auditor", Role: authz.RoleReadonlyAuditor},
	}
	for _, item := range admins {
		existing, err := adminRepo.GetByUsername(item.Username)
		if err != nil {
			stdLog.Printf("Failed to load admin %s: %v", item.Username, err)
			continue
		}
		if existing == nil {
			existing = &models.Admin{Username: item.Username, PasswordHash: hash, Role: item.Role, IsSuper: item.IsSuper}
			if err := adminRepo.Create(existing); err != nil {
				stdLog.Printf("Failed to create admin %s: %v", item.Username, err)
				continue
			}
			stdLog.Printf("Created admin: %s", item.Username)
		} else {
			stdLog.Printf("Admin already exists: %s", item.Username)
		}
		if err := authzService.SetAdminRoles(existing.ID, []string{item.Role}); err != nil {
			stdLog.Printf("Failed to assign role %s to %s: %v", item.Role, item.Username, err)
		}
	}

	// 用户
	users := []models.User{
		{Email: "affiliate@example.com", Name: "Demo Affiliate", Role: constants.UserRoleAffiliate, IsAffiliate: true},
		{Email: "marketer@example.com", Name: "Demo Marketer", Role: constants.UserRoleAffiliateMarketer},
		{Email: "customer@example.com", Name: "Demo Customer", Role: constants.UserRoleCustomer},
	}
	userIDs := map[string]uint{}
	for i := range users {
		user := users[i]
		var existing models.User
		if err := models.DB.Where("email = ?", user.Email).First(&existing).Error; err != nil {
			if err := models.DB.Create(&user).Error; err != nil {
				stdLog.Printf("Failed to create user %s: %v", user.Email, err)
				continue
			}
			stdLog.Printf("Created user: %s", user.Email)
			existing = user
		} else {
			stdLog.Printf("User already exists: %s", user.Email)
		}
		userIDs[existing.Email] = existing.ID
	}

	// 商品（分类决定佣金比例）
	products := []seedProduct{
		{Name: "Trail Running Shoes", Category: "Shoes", Price: "120.00", Image: "https://images.unsplash.com/photo-1542291026-7eec264c27ff?w=800"},
		{Name: "Classic Sneakers", Category: "Shoes", Price: "85.00", Image: "https://images.unsplash.com/photo-1549298916-b41d501d3772?w=800"},
		{Name: "Slim Fit Jeans", Category: "Jeans", Price: "49.99", Image: "https://images.unsplash.com/photo-1542272604-787c3835535d?w=800"},
		{Name: "Chino Pants", Category: "Pants", Price: "39.50", Image: "https://images.unsplash.com/photo-1473966968600-fa801b869a1a?w=800"},
		{Name: "Field Watch", Category: "Watches", Price: "75.50", Image: "https://images.unsplash.com/photo-1524592094714-0f0654e20314?w=800"},
		{Name: "Canvas Backpack", Category: "Bags", Price: "60.00", Image: "https://images.unsplash.com/photo-1553062407-98eeb64c6a62?w=800"},
	}
	created := make([]models.Product, 0, len(products))
	for _, item := range products {
		productSlug := slug.Make(item.Name)
		var existing models.Product
		if err := models.DB.Where("slug = ?", productSlug).First(&existing).Error; err != nil {
			existing = models.Product{
				Name:        item.Name,
				Slug:        productSlug,
				Category:    item.Category,
				Image:       item.Image,
				Price:       models.NewMoneyFromDecimal(decimal.RequireFromString(item.Price)),
				IsPublished: true,
			}
			if err := models.DB.Create(&existing).Error; err != nil {
				stdLog.Printf("Failed to create product %s: %v", productSlug, err)
				continue
			}
			stdLog.Printf("Created product: %s", productSlug)
		} else {
			stdLog.Printf("Product already exists: %s", productSlug)
		}
		created = append(created, existing)
	}

	// 演示订单：一笔已支付待结算，一笔未支付
	affiliateID := userIDs["affiliate@example.com"]
	customerID := userIDs["customer@example.com"]
	if affiliateID != 0 && len(created) >= 5 {
		var count int64
		models.DB.Model(&models.Order{}).Where("affiliate_user_id = ?", affiliateID).Count(&count)
		if count == 0 {
			now := time.Now()
			orders := []models.Order{
				buildOrder(customerID, affiliateID, true, &now, created[0], 2, created[4], 1),
				buildOrder(customerID, affiliateID, false, nil, created[2], 1, created[5], 1),
			}
			for i := range orders {
				if err := models.DB.Create(&orders[i]).Error; err != nil {
					stdLog.Printf("Failed to create demo order: %v", err)
					continue
				}
				stdLog.Printf("Created demo order #%d (paid=%v)", orders[i].ID, orders[i].IsPaid)
			}
		} else {
			stdLog.Printf("Demo orders already exist")
		}
	}

	fmt.Println("\n✅ Test data created successfully!")
	fmt.Println("Summary:")
	fmt.Printf("- %d Admins (password from SEED_ADMIN_PASSWORD)\n", len(admins))
	fmt.Printf("- %d Users\n", len(users))
	fmt.Printf("- %d Products\n", len(products))
	fmt.Println("- 2 Demo orders attributed to affiliate@example.com")
}

func buildOrder(customerID, affiliateID uint, paid bool, paidAt *time.Time, first models.Product, firstQty int, second models.Product, secondQty int) models.Order {
	items := []models.OrderItem{orderItem(first, firstQty), orderItem(second, secondQty)}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	affiliate := affiliateID
	method := ""
	if paid {
		method = constants.PaymentMethodBkash
	}
	return models.Order{
		UserID:          customerID,
		AffiliateUserID: &affiliate,
		TotalAmount:     models.NewMoneyFromDecimal(total),
		PaymentMethod:   method,
		IsPaid:          paid,
		PaidAt:          paidAt,
		Items:           items,
	}
}

func orderItem(product models.Product, quantity int) models.OrderItem {
	return models.OrderItem{
		ProductID: product.ID,
		Name:      product.Name,
		Slug:      product.Slug,
		Category:  product.Category,
		Price:     product.Price,
		Quantity:  quantity,
	}
}

package service

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var fixtureSeq atomic.Int64

type affiliateFixture struct {
	db          *gorm.DB
	clickRepo   *repository.GormClickRepository
	earningRepo *repository.GormEarningRepository
	orderRepo   *repository.GormOrderRepository
	productRepo *repository.GormProductRepository
	userRepo    *repository.GormUserRepository
	withdrawals *repository.GormWithdrawalRepository
	adminRepo   *repository.GormAdminRepository
}

func setupAffiliateFixture(t *testing.T) *affiliateFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:affiliate_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 单连接，避免共享缓存下并发写入出现表锁
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return &affiliateFixture{
		db:          db,
		clickRepo:   repository.NewClickRepository(db),
		earningRepo: repository.NewEarningRepository(db),
		orderRepo:   repository.NewOrderRepository(db),
		productRepo: repository.NewProductRepository(db),
		userRepo:    repository.NewUserRepository(db),
		withdrawals: repository.NewWithdrawalRepository(db),
		adminRepo:   repository.NewAdminRepository(db),
	}
}

func (f *affiliateFixture) earningService() *EarningService {
	return NewEarningService(f.earningRepo, f.orderRepo, f.productRepo, DefaultCommissionRules(), nil)
}

func (f *affiliateFixture) withdrawalService() *WithdrawalService {
	return NewWithdrawalService(f.withdrawals, f.earningRepo, f.userRepo, WithdrawalOptions{
		BalanceStatuses: []string{"confirmed", "paid"},
		RequireRole:     true,
	}, nil)
}

func (f *affiliateFixture) createUser(t *testing.T, role string, isAffiliate bool) *models.User {
	t.Helper()
	now := time.Now()
	user := &models.User{
		Email:       fmt.Sprintf("user_%d@example.com", fixtureSeq.Add(1)),
		Name:        "Test User",
		Role:        role,
		IsAffiliate: isAffiliate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func (f *affiliateFixture) createProduct(t *testing.T, name, slug, category string, price string, published bool) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        name,
		Slug:        slug,
		Category:    category,
		Image:       "/images/" + slug + ".jpg",
		Price:       models.NewMoneyFromDecimal(decimal.RequireFromString(price)),
		IsPublished: published,
	}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	if !published {
		// gorm 默认值会覆盖零值布尔
		if err := f.db.Model(product).Update("is_published", false).Error; err != nil {
			t.Fatalf("unpublish product failed: %v", err)
		}
	}
	return product
}

type orderLine struct {
	product  *models.Product
	category string
	price    string
	quantity int
}

func (f *affiliateFixture) createOrder(t *testing.T, affiliateUserID uint, paid bool, lines ...orderLine) *models.Order {
	t.Helper()
	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		price := decimal.RequireFromString(line.price)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.quantity))))
		items = append(items, models.OrderItem{
			ProductID: line.product.ID,
			Name:      line.product.Name,
			Slug:      line.product.Slug,
			Category:  line.category,
			Price:     models.NewMoneyFromDecimal(price),
			Quantity:  line.quantity,
		})
	}
	order := &models.Order{
		TotalAmount: models.NewMoneyFromDecimal(total),
	}
	if affiliateUserID != 0 {
		id := affiliateUserID
		order.AffiliateUserID = &id
	}
	if err := f.orderRepo.Create(order, items); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if paid {
		if _, err := f.orderRepo.MarkPaid(order.ID, time.Now(), "manual", nil); err != nil {
			t.Fatalf("mark order paid failed: %v", err)
		}
	}
	return order
}

// seedEarning 直接写入一条佣金，用于构造余额
func (f *affiliateFixture) seedEarning(t *testing.T, affiliateUserID uint, amount, status string) {
	t.Helper()
	var count int64
	f.db.Model(&models.AffiliateEarning{}).Count(&count)
	earning := &models.AffiliateEarning{
		AffiliateUserID:   affiliateUserID,
		OrderID:           uint(900000 + count),
		OrderItemID:       uint(900000 + count),
		ProductID:         999999,
		OrderAmount:       models.NewMoneyFromDecimal(decimal.RequireFromString(amount)),
		CommissionPercent: models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		CommissionAmount:  models.NewMoneyFromDecimal(decimal.RequireFromString(amount)),
		Status:            status,
	}
	if err := f.db.Create(earning).Error; err != nil {
		t.Fatalf("seed earning failed: %v", err)
	}
}

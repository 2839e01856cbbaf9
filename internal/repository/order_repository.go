package repository

import (
	"errors"
	"time"

	"github.com/NishadApi25/final-year-project/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	MarkPaid(id uint, paidAt time.Time, method string, result models.JSON) (bool, error)
	ListUnsettledPaid(paidBefore time.Time, limit int) ([]models.Order, error)
	WithTx(tx *gorm.DB) OrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		order.Items = items
		return nil
	})
}

// GetByID 根据 ID 获取订单（含订单项）
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	if id == 0 {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// MarkPaid 条件更新订单为已支付，返回是否由本次调用完成状态变更
func (r *GormOrderRepository) MarkPaid(id uint, paidAt time.Time, method string, result models.JSON) (bool, error) {
	updates := map[string]interface{}{
		"is_paid":    true,
		"paid_at":    paidAt,
		"updated_at": paidAt,
	}
	if method != "" {
		updates["payment_method"] = method
	}
	if result != nil {
		updates["payment_result"] = result
	}
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND is_paid = ?", id, false).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListUnsettledPaid 查询已支付、带推广用户但尚无结算占位的订单
func (r *GormOrderRepository) ListUnsettledPaid(paidBefore time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows := make([]models.Order, 0)
	err := r.db.Model(&models.Order{}).
		Joins("LEFT JOIN affiliate_order_settlements s ON s.order_id = orders.id").
		Where("orders.is_paid = ? AND orders.affiliate_user_id IS NOT NULL AND orders.affiliate_user_id <> 0", true).
		Where("orders.paid_at <= ?", paidBefore).
		Where("s.id IS NULL").
		Order("orders.paid_at asc, orders.id asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

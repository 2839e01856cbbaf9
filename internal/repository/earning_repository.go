package repository

import (
	"strings"

	"github.com/NishadApi25/final-year-project/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EarningRepository 推广佣金数据访问接口
type EarningRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) EarningRepository

	CreateSettlement(settlement *models.AffiliateSettlement) error
	CountByOrder(orderID uint) (int64, error)
	CreateBatch(earnings []models.AffiliateEarning) error
	List(filter EarningListFilter) ([]models.AffiliateEarning, int64, error)
	SumCommission(affiliateUserID uint, statuses []string) (decimal.Decimal, error)
	CountDistinctOrders(affiliateUserID uint) (int64, error)
}

// GormEarningRepository GORM 推广佣金仓储
type GormEarningRepository struct {
	db *gorm.DB
}

// NewEarningRepository 创建推广佣金仓储
func NewEarningRepository(db *gorm.DB) *GormEarningRepository {
	return &GormEarningRepository{db: db}
}

// WithTx 绑定事务
func (r *GormEarningRepository) WithTx(tx *gorm.DB) EarningRepository {
	if tx == nil {
		return r
	}
	return &GormEarningRepository{db: tx}
}

// Transaction 执行事务
func (r *GormEarningRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// CreateSettlement 写入订单结算占位，order_id 冲突时返回唯一约束错误
func (r *GormEarningRepository) CreateSettlement(settlement *models.AffiliateSettlement) error {
	return r.db.Create(settlement).Error
}

// CountByOrder 统计订单已有佣金条数
func (r *GormEarningRepository) CountByOrder(orderID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.AffiliateEarning{}).
		Where("order_id = ?", orderID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateBatch 批量写入佣金记录
func (r *GormEarningRepository) CreateBatch(earnings []models.AffiliateEarning) error {
	if len(earnings) == 0 {
		return nil
	}
	return r.db.Create(&earnings).Error
}

// List 查询佣金记录，按创建时间倒序
func (r *GormEarningRepository) List(filter EarningListFilter) ([]models.AffiliateEarning, int64, error) {
	query := r.db.Model(&models.AffiliateEarning{})
	if filter.AffiliateUserID != 0 {
		query = query.Where("affiliate_user_id = ?", filter.AffiliateUserID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	rows := make([]models.AffiliateEarning, 0)
	if err := query.Order("created_at desc, id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SumCommission 汇总推广用户指定状态的佣金，statuses 为空时汇总全部状态
func (r *GormEarningRepository) SumCommission(affiliateUserID uint, statuses []string) (decimal.Decimal, error) {
	if affiliateUserID == 0 {
		return decimal.Zero, nil
	}
	query := r.db.Model(&models.AffiliateEarning{}).Where("affiliate_user_id = ?", affiliateUserID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	return scanSum(query, "commission_amount")
}

// CountDistinctOrders 统计推广用户已结算订单数
func (r *GormEarningRepository) CountDistinctOrders(affiliateUserID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.AffiliateEarning{}).
		Where("affiliate_user_id = ?", affiliateUserID).
		Distinct("order_id").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

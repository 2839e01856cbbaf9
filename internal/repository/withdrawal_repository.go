package repository

import (
	"errors"
	"strings"

	"github.com/NishadApi25/final-year-project/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithdrawalRepository 推广提现数据访问接口
type WithdrawalRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) WithdrawalRepository

	Create(withdrawal *models.AffiliateWithdrawal) error
	Update(withdrawal *models.AffiliateWithdrawal) error
	GetByID(id uint) (*models.AffiliateWithdrawal, error)
	GetByIDForUpdate(id uint) (*models.AffiliateWithdrawal, error)
	List(filter WithdrawalListFilter) ([]models.AffiliateWithdrawal, int64, error)
	SumByStatus(affiliateUserID uint, status string) (decimal.Decimal, error)
}

// GormWithdrawalRepository GORM 推广提现仓储
type GormWithdrawalRepository struct {
	db *gorm.DB
}

// NewWithdrawalRepository 创建推广提现仓储
func NewWithdrawalRepository(db *gorm.DB) *GormWithdrawalRepository {
	return &GormWithdrawalRepository{db: db}
}

// WithTx 绑定事务
func (r *GormWithdrawalRepository) WithTx(tx *gorm.DB) WithdrawalRepository {
	if tx == nil {
		return r
	}
	return &GormWithdrawalRepository{db: tx}
}

// Transaction 执行事务
func (r *GormWithdrawalRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建提现申请
func (r *GormWithdrawalRepository) Create(withdrawal *models.AffiliateWithdrawal) error {
	return r.db.Create(withdrawal).Error
}

// Update 更新提现申请
func (r *GormWithdrawalRepository) Update(withdrawal *models.AffiliateWithdrawal) error {
	return r.db.Save(withdrawal).Error
}

// GetByID 按ID获取提现申请
func (r *GormWithdrawalRepository) GetByID(id uint) (*models.AffiliateWithdrawal, error) {
	return r.get(r.db, id)
}

// GetByIDForUpdate 按ID获取并锁定提现申请
func (r *GormWithdrawalRepository) GetByIDForUpdate(id uint) (*models.AffiliateWithdrawal, error) {
	return r.get(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormWithdrawalRepository) get(db *gorm.DB, id uint) (*models.AffiliateWithdrawal, error) {
	if id == 0 {
		return nil, nil
	}
	var withdrawal models.AffiliateWithdrawal
	if err := db.First(&withdrawal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &withdrawal, nil
}

// List 查询提现申请，按申请时间倒序
func (r *GormWithdrawalRepository) List(filter WithdrawalListFilter) ([]models.AffiliateWithdrawal, int64, error) {
	query := r.db.Model(&models.AffiliateWithdrawal{})
	if filter.AffiliateUserID != 0 {
		query = query.Where("affiliate_user_id = ?", filter.AffiliateUserID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("requested_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("requested_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	rows := make([]models.AffiliateWithdrawal, 0)
	if err := query.Order("requested_at desc, id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SumByStatus 汇总推广用户指定状态的提现金额
func (r *GormWithdrawalRepository) SumByStatus(affiliateUserID uint, status string) (decimal.Decimal, error) {
	if affiliateUserID == 0 {
		return decimal.Zero, nil
	}
	query := r.db.Model(&models.AffiliateWithdrawal{}).
		Where("affiliate_user_id = ? AND status = ?", affiliateUserID, strings.TrimSpace(status))
	return scanSum(query, "amount")
}

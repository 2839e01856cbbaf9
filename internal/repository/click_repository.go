package repository

import (
	"time"

	"github.com/NishadApi25/final-year-project/internal/models"

	"gorm.io/gorm"
)

// ClickRepository 推广点击数据访问接口
type ClickRepository interface {
	Create(click *models.AffiliateClick) error
	List(filter ClickListFilter) ([]models.AffiliateClick, error)
	CountByAffiliate(affiliateUserID uint) (int64, error)
	DailyCountsByProduct(affiliateUserID uint, since time.Time) ([]ClickDailyRow, error)
}

// GormClickRepository GORM 推广点击仓储
type GormClickRepository struct {
	db *gorm.DB
}

// NewClickRepository 创建推广点击仓储
func NewClickRepository(db *gorm.DB) *GormClickRepository {
	return &GormClickRepository{db: db}
}

// Create 写入点击记录
func (r *GormClickRepository) Create(click *models.AffiliateClick) error {
	return r.db.Create(click).Error
}

// List 按条件查询点击记录，按点击时间倒序
func (r *GormClickRepository) List(filter ClickListFilter) ([]models.AffiliateClick, error) {
	query := r.db.Model(&models.AffiliateClick{})
	if filter.ProductID != 0 {
		query = query.Where("product_id = ?", filter.ProductID)
	}
	if filter.AffiliateUserID != 0 {
		query = query.Where("affiliate_user_id = ?", filter.AffiliateUserID)
	}

	rows := make([]models.AffiliateClick, 0)
	if err := query.Order("clicked_at desc, id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByAffiliate 统计推广用户点击数
func (r *GormClickRepository) CountByAffiliate(affiliateUserID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.AffiliateClick{}).
		Where("affiliate_user_id = ?", affiliateUserID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DailyCountsByProduct 按商品、按天统计点击数，affiliateUserID 为 0 时统计全部
func (r *GormClickRepository) DailyCountsByProduct(affiliateUserID uint, since time.Time) ([]ClickDailyRow, error) {
	day := dayExpr(r.db, "clicked_at")
	query := r.db.Model(&models.AffiliateClick{}).
		Select("product_id, "+day+" AS day, COUNT(*) AS total").
		Where("clicked_at >= ?", since)
	if affiliateUserID != 0 {
		query = query.Where("affiliate_user_id = ?", affiliateUserID)
	}

	rows := make([]ClickDailyRow, 0)
	if err := query.Group("product_id, " + day).Order("product_id asc, day asc").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

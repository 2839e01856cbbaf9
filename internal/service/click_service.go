package service

import (
	"strings"
	"time"

	"github.com/NishadApi25/final-year-project/internal/metrics"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/repository"
)

// ClickService 推广点击记录
type ClickService struct {
	repo    repository.ClickRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewClickService 创建点击服务
func NewClickService(repo repository.ClickRepository, m *metrics.Metrics) *ClickService {
	return &ClickService{repo: repo, metrics: m, now: time.Now}
}

// RecordClickInput 点击记录输入
type RecordClickInput struct {
	ProductID       uint
	AffiliateUserID uint
	IPAddress       string
}

// ClickFilter 点击查询条件
type ClickFilter struct {
	ProductID       uint
	AffiliateUserID uint
}

// RecordClick 记录一次点击，不去重
func (s *ClickService) RecordClick(input RecordClickInput) (*models.AffiliateClick, error) {
	if input.ProductID == 0 || input.AffiliateUserID == 0 {
		return nil, validationError("Missing productId or affiliateUserId")
	}
	click := &models.AffiliateClick{
		AffiliateUserID: input.AffiliateUserID,
		ProductID:       input.ProductID,
		IPAddress:       strings.TrimSpace(input.IPAddress),
		ClickedAt:       s.now(),
	}
	if err := s.repo.Create(click); err != nil {
		return nil, err
	}
	s.metrics.ClickRecorded()
	return click, nil
}

// ListClicks 查询点击记录，按时间倒序
func (s *ClickService) ListClicks(filter ClickFilter) ([]models.AffiliateClick, error) {
	return s.repo.List(repository.ClickListFilter{
		ProductID:       filter.ProductID,
		AffiliateUserID: filter.AffiliateUserID,
	})
}

package service

import (
	"context"
	"math"
	"time"

	"github.com/NishadApi25/final-year-project/internal/cache"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/repository"
)

const (
	weeklyClickDays  = 7
	monthlyClickDays = 30
	recentEarnings   = 5
	dayLayout        = "2006-01-02"
)

// DashboardService 推广用户数据总览
// 只读聚合，结果基于当前持久化数据。
type DashboardService struct {
	clickRepo   repository.ClickRepository
	earningRepo repository.EarningRepository
	productRepo repository.ProductRepository
	withdrawals *WithdrawalService
	cacheTTL    time.Duration
	now         func() time.Time
}

// NewDashboardService 创建总览服务，cacheTTL <= 0 时不缓存
func NewDashboardService(
	clickRepo repository.ClickRepository,
	earningRepo repository.EarningRepository,
	productRepo repository.ProductRepository,
	withdrawals *WithdrawalService,
	cacheTTL time.Duration,
) *DashboardService {
	return &DashboardService{
		clickRepo:   clickRepo,
		earningRepo: earningRepo,
		productRepo: productRepo,
		withdrawals: withdrawals,
		cacheTTL:    cacheTTL,
		now:         time.Now,
	}
}

// AffiliateOverview 推广总览
type AffiliateOverview struct {
	AffiliateUserID uint                      `json:"affiliateUserId"`
	Clicks          int64                     `json:"clicks"`
	Conversions     int64                     `json:"conversions"`
	ConversionRate  float64                   `json:"conversionRate"`
	TotalEarnings   models.Money              `json:"totalEarnings"`
	Balance         Balance                   `json:"balance"`
	RecentEarnings  []models.AffiliateEarning `json:"recentEarnings"`
	GeneratedAt     time.Time                 `json:"generatedAt"`
}

// ProductClickSeries 商品点击序列，末位为当天
type ProductClickSeries struct {
	ProductID     uint    `json:"productId"`
	ProductName   string  `json:"productName"`
	Slug          string  `json:"slug"`
	WeeklyClicks  []int64 `json:"weeklyClicks"`
	MonthlyClicks []int64 `json:"monthlyClicks"`
}

// Overview 推广用户总览
func (s *DashboardService) Overview(ctx context.Context, affiliateUserID uint, forceRefresh bool) (*AffiliateOverview, error) {
	if affiliateUserID == 0 {
		return nil, validationError("Missing affiliateUserId")
	}
	cacheKey := cache.OverviewKey(affiliateUserID)
	if s.cacheTTL > 0 && !forceRefresh {
		var cached AffiliateOverview
		hit, err := cache.GetJSON(ctx, cacheKey, &cached)
		if err == nil && hit {
			return &cached, nil
		}
	}

	clicks, err := s.clickRepo.CountByAffiliate(affiliateUserID)
	if err != nil {
		return nil, err
	}
	conversions, err := s.earningRepo.CountDistinctOrders(affiliateUserID)
	if err != nil {
		return nil, err
	}
	total, err := s.earningRepo.SumCommission(affiliateUserID, nil)
	if err != nil {
		return nil, err
	}
	balance, err := s.withdrawals.Balance(affiliateUserID)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.earningRepo.List(repository.EarningListFilter{
		AffiliateUserID: affiliateUserID,
		Page:            1,
		PageSize:        recentEarnings,
	})
	if err != nil {
		return nil, err
	}

	overview := &AffiliateOverview{
		AffiliateUserID: affiliateUserID,
		Clicks:          clicks,
		Conversions:     conversions,
		ConversionRate:  conversionRate(conversions, clicks),
		TotalEarnings:   models.NewMoneyFromDecimal(total),
		Balance:         *balance,
		RecentEarnings:  recent,
		GeneratedAt:     s.now(),
	}
	if s.cacheTTL > 0 {
		_ = cache.SetJSON(ctx, cacheKey, overview, s.cacheTTL)
	}
	return overview, nil
}

// ProductClickSeries 已上架商品的 7 天与 30 天点击序列，affiliateUserID 为 0 时统计全部推广用户
func (s *DashboardService) ProductClickSeries(affiliateUserID uint) ([]ProductClickSeries, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(monthlyClickDays - 1))

	products, err := s.productRepo.ListPublished()
	if err != nil {
		return nil, err
	}
	rows, err := s.clickRepo.DailyCountsByProduct(affiliateUserID, since)
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]map[string]int64)
	for _, row := range rows {
		if counts[row.ProductID] == nil {
			counts[row.ProductID] = make(map[string]int64)
		}
		counts[row.ProductID][row.Day] += row.Total
	}

	result := make([]ProductClickSeries, 0, len(products))
	for _, product := range products {
		daily := counts[product.ID]
		result = append(result, ProductClickSeries{
			ProductID:     product.ID,
			ProductName:   product.Name,
			Slug:          product.Slug,
			WeeklyClicks:  buildDailySeries(daily, today, weeklyClickDays),
			MonthlyClicks: buildDailySeries(daily, today, monthlyClickDays),
		})
	}
	return result, nil
}

// buildDailySeries 生成 days 天的计数，下标 days-1 为 today
func buildDailySeries(daily map[string]int64, today time.Time, days int) []int64 {
	series := make([]int64, days)
	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, i-(days-1)).Format(dayLayout)
		series[i] = daily[day]
	}
	return series
}

func conversionRate(conversions, clicks int64) float64 {
	if clicks <= 0 || conversions <= 0 {
		return 0
	}
	value := (float64(conversions) / float64(clicks)) * 100
	return math.Round(value*100) / 100
}

package service

import (
	"errors"
	"strings"

	"github.com/NishadApi25/final-year-project/internal/constants"
	"github.com/NishadApi25/final-year-project/internal/logger"
	"github.com/NishadApi25/final-year-project/internal/metrics"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EarningService 订单结算与佣金账本
type EarningService struct {
	repo        repository.EarningRepository
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	rules       CommissionRules
	metrics     *metrics.Metrics
}

// NewEarningService 创建佣金服务
func NewEarningService(
	repo repository.EarningRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	rules CommissionRules,
	m *metrics.Metrics,
) *EarningService {
	if len(rules.Rules) == 0 && rules.DefaultPercent.IsZero() {
		rules = DefaultCommissionRules()
	}
	return &EarningService{
		repo:        repo,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		rules:       rules,
		metrics:     m,
	}
}

// SettleOptions 结算参数
type SettleOptions struct {
	AffiliateUserID uint
	Source          string
}

// EarningFilter 佣金查询条件
type EarningFilter struct {
	AffiliateUserID uint
	Status          string
}

// EarningProduct 佣金关联商品摘要
type EarningProduct struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image"`
}

// EarningView 带商品信息的佣金记录
type EarningView struct {
	models.AffiliateEarning
	Product EarningProduct `json:"product"`
}

// EarningListResult 佣金列表与汇总
type EarningListResult struct {
	Earnings      []EarningView `json:"earnings"`
	TotalEarnings models.Money  `json:"totalEarnings"`
	Count         int           `json:"count"`
	UniqueOrders  int           `json:"uniqueOrders"`
}

// SettleOrder 按订单项生成佣金，一单只结算一次。
// 重复结算返回 ErrAlreadySettled 与空结果。
func (s *EarningService) SettleOrder(orderID uint, opts SettleOptions) ([]models.AffiliateEarning, error) {
	if orderID == 0 {
		return nil, validationError("Missing orderId")
	}
	source := strings.TrimSpace(opts.Source)
	if source == "" {
		source = constants.SettlementSourceManual
	}

	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	affiliateUserID, err := resolveSettlementAffiliate(order, opts.AffiliateUserID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.CountByOrder(order.ID)
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		s.metrics.Settlement(source, metrics.ResultDup)
		return []models.AffiliateEarning{}, ErrAlreadySettled
	}

	categories := s.resolveCategories(order.Items)
	earnings := make([]models.AffiliateEarning, 0, len(order.Items))
	for _, item := range order.Items {
		category := strings.TrimSpace(item.Category)
		if category == "" {
			category = categories[item.ProductID]
		}
		commission := s.rules.Compute(CommissionItem{
			Price:    item.Price.Decimal,
			Quantity: item.Quantity,
			Category: category,
		})
		earnings = append(earnings, models.AffiliateEarning{
			AffiliateUserID:   affiliateUserID,
			OrderID:           order.ID,
			OrderItemID:       item.ID,
			ProductID:         item.ProductID,
			OrderAmount:       models.NewMoneyFromDecimal(commission.OrderAmount),
			CommissionPercent: models.NewMoneyFromDecimal(commission.Percent),
			CommissionAmount:  models.NewMoneyFromDecimal(commission.Amount),
			Status:            constants.EarningStatusConfirmed,
		})
	}

	err = s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		settlement := &models.AffiliateSettlement{
			OrderID:         order.ID,
			AffiliateUserID: affiliateUserID,
			Source:          source,
			ItemCount:       len(earnings),
		}
		if err := repoTx.CreateSettlement(settlement); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadySettled
			}
			return err
		}
		if err := repoTx.CreateBatch(earnings); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadySettled
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadySettled) {
			s.metrics.Settlement(source, metrics.ResultDup)
			return []models.AffiliateEarning{}, ErrAlreadySettled
		}
		s.metrics.Settlement(source, metrics.ResultFailed)
		return nil, err
	}

	total := decimal.Zero
	for _, earning := range earnings {
		total = total.Add(earning.CommissionAmount.Decimal)
	}
	s.metrics.Settlement(source, metrics.ResultSuccess)
	s.metrics.CommissionRecorded(source, total.InexactFloat64())
	logger.Infow("affiliate_order_settled",
		"order_id", order.ID,
		"affiliate_user_id", affiliateUserID,
		"source", source,
		"items", len(earnings),
		"commission", total.StringFixed(2),
	)
	return earnings, nil
}

// ListEarnings 查询佣金记录并补充商品信息，汇总基于返回的记录
func (s *EarningService) ListEarnings(filter EarningFilter) (*EarningListResult, error) {
	rows, _, err := s.repo.List(repository.EarningListFilter{
		AffiliateUserID: filter.AffiliateUserID,
		Status:          strings.TrimSpace(filter.Status),
	})
	if err != nil {
		return nil, err
	}

	products := s.lookupProducts(rows)
	result := &EarningListResult{Earnings: make([]EarningView, 0, len(rows))}
	total := decimal.Zero
	orders := make(map[uint]struct{}, len(rows))
	for _, row := range rows {
		view := EarningView{
			AffiliateEarning: row,
			Product:          EarningProduct{ID: row.ProductID, Name: constants.UnknownProductName},
		}
		if product, ok := products[row.ProductID]; ok {
			view.Product.Name = product.Name
			view.Product.Slug = product.Slug
			view.Product.Image = product.Image
		}
		result.Earnings = append(result.Earnings, view)
		total = total.Add(row.CommissionAmount.Decimal)
		orders[row.OrderID] = struct{}{}
	}
	result.TotalEarnings = models.NewMoneyFromDecimal(total)
	result.Count = len(rows)
	result.UniqueOrders = len(orders)
	return result, nil
}

// TotalEarnings 推广用户全部状态佣金之和
func (s *EarningService) TotalEarnings(affiliateUserID uint) (decimal.Decimal, error) {
	if affiliateUserID == 0 {
		return decimal.Zero, validationError("Missing affiliateUserId")
	}
	return s.repo.SumCommission(affiliateUserID, nil)
}

func resolveSettlementAffiliate(order *models.Order, supplied uint) (uint, error) {
	if order.AffiliateUserID != nil && *order.AffiliateUserID != 0 {
		if supplied != 0 && supplied != *order.AffiliateUserID {
			return 0, ErrAffiliateMismatch
		}
		return *order.AffiliateUserID, nil
	}
	if supplied == 0 {
		return 0, validationError("Missing affiliateUserId")
	}
	return supplied, nil
}

// resolveCategories 订单项缺少分类时回退到商品分类
func (s *EarningService) resolveCategories(items []models.OrderItem) map[uint]string {
	ids := make([]uint, 0)
	for _, item := range items {
		if strings.TrimSpace(item.Category) == "" && item.ProductID != 0 {
			ids = append(ids, item.ProductID)
		}
	}
	result := make(map[uint]string, len(ids))
	if len(ids) == 0 || s.productRepo == nil {
		return result
	}
	products, err := s.productRepo.ListByIDs(ids)
	if err != nil {
		logger.Warnw("affiliate_settle_category_lookup_failed", "error", err)
		return result
	}
	for _, product := range products {
		result[product.ID] = product.Category
	}
	return result
}

// lookupProducts 批量查询商品，失败时降级为未知商品
func (s *EarningService) lookupProducts(rows []models.AffiliateEarning) map[uint]models.Product {
	result := make(map[uint]models.Product)
	if len(rows) == 0 || s.productRepo == nil {
		return result
	}
	seen := make(map[uint]struct{}, len(rows))
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.ProductID]; ok || row.ProductID == 0 {
			continue
		}
		seen[row.ProductID] = struct{}{}
		ids = append(ids, row.ProductID)
	}
	products, err := s.productRepo.ListByIDs(ids)
	if err != nil {
		logger.Warnw("affiliate_earning_product_lookup_failed", "error", err)
		return result
	}
	for _, product := range products {
		result[product.ID] = product
	}
	return result
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/NishadApi25/final-year-project/internal/authz"
	"github.com/NishadApi25/final-year-project/internal/cache"
	"github.com/NishadApi25/final-year-project/internal/constants"
	"github.com/NishadApi25/final-year-project/internal/logger"
	"github.com/NishadApi25/final-year-project/internal/metrics"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	withdrawalLockTTL  = 10 * time.Second
	withdrawalLockWait = 3 * time.Second
)

// WithdrawalService 推广提现账本
type WithdrawalService struct {
	repo            repository.WithdrawalRepository
	earningRepo     repository.EarningRepository
	userRepo        repository.UserRepository
	balanceStatuses []string
	requireRole     bool
	locks           *keyedMutex
	metrics         *metrics.Metrics
	now             func() time.Time
}

// WithdrawalOptions 提现规则
type WithdrawalOptions struct {
	// BalanceStatuses 计入可提现余额的佣金状态，为空时计入全部状态
	BalanceStatuses []string
	RequireRole     bool
}

// NewWithdrawalService 创建提现服务
func NewWithdrawalService(
	repo repository.WithdrawalRepository,
	earningRepo repository.EarningRepository,
	userRepo repository.UserRepository,
	opts WithdrawalOptions,
	m *metrics.Metrics,
) *WithdrawalService {
	statuses := make([]string, 0, len(opts.BalanceStatuses))
	for _, status := range opts.BalanceStatuses {
		if trimmed := strings.ToLower(strings.TrimSpace(status)); trimmed != "" {
			statuses = append(statuses, trimmed)
		}
	}
	return &WithdrawalService{
		repo:            repo,
		earningRepo:     earningRepo,
		userRepo:        userRepo,
		balanceStatuses: statuses,
		requireRole:     opts.RequireRole,
		locks:           newKeyedMutex(),
		metrics:         m,
		now:             time.Now,
	}
}

// RequestWithdrawalInput 提现申请输入
type RequestWithdrawalInput struct {
	AffiliateUserID uint
	Amount          decimal.Decimal
	PaymentDetails  models.JSON
}

// ReviewWithdrawalInput 审核输入
type ReviewWithdrawalInput struct {
	ID      uint
	AdminID uint
	Action  string
	Reason  string
}

// WithdrawalAdminFilter 后台提现列表过滤
type WithdrawalAdminFilter struct {
	AffiliateUserID uint
	Status          string
	Page            int
	PageSize        int
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

// Balance 推广用户余额
type Balance struct {
	Earned    models.Money `json:"earned"`
	Paid      models.Money `json:"paid"`
	Pending   models.Money `json:"pending"`
	Available models.Money `json:"available"`
}

// WithdrawalList 提现记录与汇总
type WithdrawalList struct {
	Records        []models.AffiliateWithdrawal `json:"records"`
	TotalWithdrawn models.Money                 `json:"totalWithdrawn"`
	PendingTotal   models.Money                 `json:"pendingTotal"`
}

// RequestWithdrawal 创建提现申请，同一推广用户的余额校验与写入串行执行
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, input RequestWithdrawalInput) (*models.AffiliateWithdrawal, error) {
	if input.AffiliateUserID == 0 {
		return nil, validationError("Missing affiliateUserId")
	}
	amount := input.Amount
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, validationError("Amount must be greater than 0")
	}
	// 不做静默舍入
	if !amount.Equal(amount.Round(2)) {
		return nil, validationError("Amount must have at most 2 decimal places")
	}

	unlock := s.locks.Lock(input.AffiliateUserID)
	defer unlock()

	lock, err := cache.AcquireLock(ctx, cache.WithdrawalLockName(input.AffiliateUserID), withdrawalLockTTL, withdrawalLockWait)
	if err != nil {
		if errors.Is(err, cache.ErrLockBusy) {
			s.metrics.Withdrawal(metrics.ResultRejected)
			return nil, ErrWithdrawalBusy
		}
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Ctx(ctx).Warnw("affiliate_withdrawal_lock_release_failed", "affiliate_user_id", input.AffiliateUserID, "error", err)
		}
	}()

	var created *models.AffiliateWithdrawal
	err = s.repo.Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.WithTx(tx).GetByIDForUpdate(input.AffiliateUserID)
		if err != nil {
			return err
		}
		if s.requireRole && !authz.IsAffiliate(user) {
			return ErrNotAffiliate
		}

		balance, err := s.computeBalance(s.earningRepo.WithTx(tx), s.repo.WithTx(tx), input.AffiliateUserID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(balance.Available.Decimal) {
			return &InsufficientBalanceError{Available: balance.Available.Decimal}
		}

		now := s.now()
		created = &models.AffiliateWithdrawal{
			AffiliateUserID: input.AffiliateUserID,
			Amount:          models.NewMoneyFromDecimal(amount),
			Status:          constants.WithdrawalStatusPending,
			PaymentDetails:  input.PaymentDetails,
			RequestedAt:     now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return s.repo.WithTx(tx).Create(created)
	})
	if err != nil {
		var insufficient *InsufficientBalanceError
		switch {
		case errors.As(err, &insufficient), errors.Is(err, ErrForbidden):
			s.metrics.Withdrawal(metrics.ResultRejected)
		default:
			s.metrics.Withdrawal(metrics.ResultFailed)
		}
		return nil, err
	}

	s.metrics.Withdrawal(metrics.ResultSuccess)
	invalidateOverview(ctx, input.AffiliateUserID)
	logger.Ctx(ctx).Infow("affiliate_withdrawal_requested",
		"withdrawal_id", created.ID,
		"affiliate_user_id", input.AffiliateUserID,
		"amount", amount.StringFixed(2),
	)
	return created, nil
}

// Balance 查询可提现余额
func (s *WithdrawalService) Balance(affiliateUserID uint) (*Balance, error) {
	if affiliateUserID == 0 {
		return nil, validationError("Missing affiliateUserId")
	}
	return s.computeBalance(s.earningRepo, s.repo, affiliateUserID)
}

// ListWithdrawals 推广用户提现记录，汇总基于返回的记录
func (s *WithdrawalService) ListWithdrawals(affiliateUserID uint) (*WithdrawalList, error) {
	if affiliateUserID == 0 {
		return nil, validationError("Missing affiliateUserId")
	}
	rows, _, err := s.repo.List(repository.WithdrawalListFilter{AffiliateUserID: affiliateUserID})
	if err != nil {
		return nil, err
	}
	paid := decimal.Zero
	pending := decimal.Zero
	for _, row := range rows {
		switch row.Status {
		case constants.WithdrawalStatusPaid:
			paid = paid.Add(row.Amount.Decimal)
		case constants.WithdrawalStatusPending:
			pending = pending.Add(row.Amount.Decimal)
		}
	}
	return &WithdrawalList{
		Records:        rows,
		TotalWithdrawn: models.NewMoneyFromDecimal(paid),
		PendingTotal:   models.NewMoneyFromDecimal(pending),
	}, nil
}

// ListAdmin 后台查询提现申请
func (s *WithdrawalService) ListAdmin(filter WithdrawalAdminFilter) ([]models.AffiliateWithdrawal, int64, error) {
	return s.repo.List(repository.WithdrawalListFilter{
		AffiliateUserID: filter.AffiliateUserID,
		Status:          strings.TrimSpace(filter.Status),
		Page:            filter.Page,
		PageSize:        filter.PageSize,
		CreatedFrom:     filter.CreatedFrom,
		CreatedTo:       filter.CreatedTo,
	})
}

// ReviewWithdrawal 管理端审核提现，仅 pending 状态可流转
func (s *WithdrawalService) ReviewWithdrawal(ctx context.Context, input ReviewWithdrawalInput) (*models.AffiliateWithdrawal, error) {
	if input.ID == 0 {
		return nil, ErrWithdrawalNotFound
	}
	action := strings.ToLower(strings.TrimSpace(input.Action))
	if action != constants.WithdrawalActionPay && action != constants.WithdrawalActionReject {
		return nil, ErrWithdrawalActionBad
	}
	reason := strings.TrimSpace(input.Reason)

	var affiliateUserID uint
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		withdrawal, err := repoTx.GetByIDForUpdate(input.ID)
		if err != nil {
			return err
		}
		if withdrawal == nil {
			return ErrWithdrawalNotFound
		}
		if withdrawal.Status != constants.WithdrawalStatusPending {
			return ErrWithdrawalNotPending
		}

		now := s.now()
		adminID := input.AdminID
		withdrawal.ProcessedBy = &adminID
		withdrawal.ProcessedAt = &now
		withdrawal.UpdatedAt = now
		if action == constants.WithdrawalActionReject {
			withdrawal.Status = constants.WithdrawalStatusRejected
			withdrawal.RejectReason = reason
		} else {
			withdrawal.Status = constants.WithdrawalStatusPaid
			withdrawal.RejectReason = ""
		}
		affiliateUserID = withdrawal.AffiliateUserID
		return repoTx.Update(withdrawal)
	})
	if err != nil {
		return nil, err
	}

	invalidateOverview(ctx, affiliateUserID)
	logger.Ctx(ctx).Infow("affiliate_withdrawal_reviewed",
		"withdrawal_id", input.ID,
		"admin_id", input.AdminID,
		"action", action,
	)
	return s.repo.GetByID(input.ID)
}

// computeBalance available = earned - paid - pending
func (s *WithdrawalService) computeBalance(earningRepo repository.EarningRepository, repo repository.WithdrawalRepository, affiliateUserID uint) (*Balance, error) {
	earned, err := earningRepo.SumCommission(affiliateUserID, s.balanceStatuses)
	if err != nil {
		return nil, err
	}
	paid, err := repo.SumByStatus(affiliateUserID, constants.WithdrawalStatusPaid)
	if err != nil {
		return nil, err
	}
	pending, err := repo.SumByStatus(affiliateUserID, constants.WithdrawalStatusPending)
	if err != nil {
		return nil, err
	}
	available := earned.Sub(paid).Sub(pending).Round(2)
	return &Balance{
		Earned:    models.NewMoneyFromDecimal(earned),
		Paid:      models.NewMoneyFromDecimal(paid),
		Pending:   models.NewMoneyFromDecimal(pending),
		Available: models.NewMoneyFromDecimal(available),
	}, nil
}

func invalidateOverview(ctx context.Context, affiliateUserID uint) {
	if affiliateUserID == 0 {
		return
	}
	if err := cache.Del(ctx, cache.OverviewKey(affiliateUserID)); err != nil {
		logger.Ctx(ctx).Warnw("affiliate_overview_cache_invalidate_failed", "affiliate_user_id", affiliateUserID, "error", err)
	}
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/NishadApi25/final-year-project/internal/constants"
	"github.com/NishadApi25/final-year-project/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithdrawalServiceBalanceBoundary(t *testing.T) {
	f := setupAffiliateFixture(t)
	affiliate := f.createUser(t, "affiliate", false)
	f.seedEarning(t, affiliate.ID, "60.00", constants.EarningStatusConfirmed)
	f.seedEarning(t, affiliate.ID, "40.00", constants.EarningStatusPaid)
	// pending 佣金不计入可提现余额
	f.seedEarning(t, affiliate.ID, "25.00", constants.EarningStatusPending)
	svc := f.withdrawalService()
	ctx := context.Background()

	balance, err := svc.Balance(affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance.Earned.StringFixed(2))
	assert.Equal(t, "100.00", balance.Available.StringFixed(2))

	_, err = svc.RequestWithdrawal(ctx, RequestWithdrawalInput{AffiliateUserID: affiliate.ID, Amount: decimal.RequireFromString("100.01")})
	var insufficient *InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "Insufficient balance. Maximum withdrawable amount is 100.00", err.Error())

	created, err := svc.RequestWithdrawal(ctx, RequestWithdrawalInput{
		AffiliateUserID: affiliate.ID,
		Amount:          decimal.RequireFromString("100.00"),
		PaymentDetails:  models.JSON{"method": "bkash", "account": "01712345678"},
	})
	require.NoError(t, err)
	assert.Equal(t, constants.WithdrawalStatusPending, created.Status)
	assert.False(t, created.RequestedAt.IsZero())

	balance, err = svc.Balance(affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", balance.Pending.StringFixed(2))
	assert.True(t, balance.Available.IsZero())

	_, err = svc.RequestWithdrawal(ctx, RequestWithdrawalInput{AffiliateUserID: affiliate.ID, Amount: decimal.RequireFromString("0.01")})
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "Insufficient balance. Maximum withdrawable amount is 0.00", err.Error())
}

func TestWithdrawalServiceValidation(t *testing.T) {
	f := setupAffiliateFixture(t)
	svc := f.withdrawalService()
	ctx := context.Background()
	customer := f.createUser(t, "user", false)
	f.seedEarning(t, customer.ID, "50.00", constants.EarningStatusConfirmed)

	_, err := svc.RequestWithdrawal(ctx, RequestWithdrawalInput{AffiliateUserID: customer.ID, Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Amount must be greater than 0")
	_, err = svc.RequestWithdrawal(ctx, RequestWithdrawalInput{AffiliateUserID: customer.ID, Amount: decimal.RequireFromString("-5")})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.RequestWithdrawal(ctx, RequestWithdrawalInput{AffiliateUserID: customer.ID, Amount: decimal.RequireFromString("0.004")})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "at most 2 decimal places")
	_, err = svc.RequestWithdrawal(ctx, RequestWithdrawalInput{AffiliateUserID: customer.ID, Amount: decimal.RequireFromString("5.001")})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "at most 2 decimal places")
	// 尾随零不算多余精度
	_, err = svc.RequestWithdrawal(ctx, RequestWithdrawalInput{AffiliateUserID: customer.ID, Amount: decimal.RequireFromString("5.000")})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.RequestWithdrawal(ctx, RequestWithdrawalInput{Amount: decimal.RequireFromString("5")})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RequestWithdrawal(ctx, RequestWithdrawalInput{AffiliateUserID: customer.ID, Amount: decimal.RequireFromString("5")})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestWithdrawalServiceConcurrentRequestsNeverOverdraw(t *testing.T) {
	f := setupAffiliateFixture(t)
	affiliate := f.createUser(t, "Affiliate-Marketer", false)
	f.seedEarning(t, affiliate.ID, "100.00", constants.EarningStatusConfirmed)
	svc := f.withdrawalService()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = svc.RequestWithdrawal(context.Background(), RequestWithdrawalInput{
				AffiliateUserID: affiliate.ID,
				Amount:          decimal.RequireFromString("60.00"),
			})
		}(i)
	}
	wg.Wait()

	ok, rejected := 0, 0
	for _, err := range results {
		var insufficient *InsufficientBalanceError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &insufficient):
			rejected++
			assert.Equal(t, "40.00", insufficient.Available.StringFixed(2))
		default:
			t.Fatalf("unexpected withdrawal error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)

	balance, err := svc.Balance(affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", balance.Available.StringFixed(2))
}

func TestWithdrawalServiceReview(t *testing.T) {
	f := setupAffiliateFixture(t)
	affiliate := f.createUser(t, "affiliate", true)
	f.seedEarning(t, affiliate.ID, "100.00", constants.EarningStatusConfirmed)
	svc := f.withdrawalService()
	ctx := context.Background()

	first, err := svc.RequestWithdrawal(ctx, RequestWithdrawalInput{AffiliateUserID: affiliate.ID, Amount: decimal.RequireFromString("30")})
	require.NoError(t, err)
	second, err := svc.RequestWithdrawal(ctx, RequestWithdrawalInput{AffiliateUserID: affiliate.ID, Amount: decimal.RequireFromString("20")})
	require.NoError(t, err)

	paid, err := svc.ReviewWithdrawal(ctx, ReviewWithdrawalInput{ID: first.ID, AdminID: 1, Action: "PAY"})
	require.NoError(t, err)
	assert.Equal(t, constants.WithdrawalStatusPaid, paid.Status)
	require.NotNil(t, paid.ProcessedAt)
	require.NotNil(t, paid.ProcessedBy)
	assert.Equal(t, uint(1), *paid.ProcessedBy)

	rejected, err := svc.ReviewWithdrawal(ctx, ReviewWithdrawalInput{ID: second.ID, AdminID: 1, Action: "reject", Reason: "wrong account"})
	require.NoError(t, err)
	assert.Equal(t, constants.WithdrawalStatusRejected, rejected.Status)
	assert.Equal(t, "wrong account", rejected.RejectReason)

	_, err = svc.ReviewWithdrawal(ctx, ReviewWithdrawalInput{ID: first.ID, AdminID: 1, Action: "reject"})
	require.ErrorIs(t, err, ErrWithdrawalNotPending)
	_, err = svc.ReviewWithdrawal(ctx, ReviewWithdrawalInput{ID: 9999, AdminID: 1, Action: "pay"})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ReviewWithdrawal(ctx, ReviewWithdrawalInput{ID: first.ID, AdminID: 1, Action: "approve"})
	require.ErrorIs(t, err, ErrValidation)

	// 已打款扣减余额，驳回释放余额
	balance, err := svc.Balance(affiliate.ID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", balance.Paid.StringFixed(2))
	assert.True(t, balance.Pending.IsZero())
	assert.Equal(t, "70.00", balance.Available.StringFixed(2))

	list, err := svc.ListWithdrawals(affiliate.ID)
	require.NoError(t, err)
	assert.Len(t, list.Records, 2)
	assert.Equal(t, "30.00", list.TotalWithdrawn.StringFixed(2))
	assert.True(t, list.PendingTotal.IsZero())

	pending, total, err := svc.ListAdmin(WithdrawalAdminFilter{Status: constants.WithdrawalStatusRejected, Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NishadApi25/final-year-project/internal/constants"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/payment/bkash"
	"github.com/NishadApi25/final-year-project/internal/payment/stripe"
	"github.com/NishadApi25/final-year-project/internal/queue"
	"github.com/NishadApi25/final-year-project/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeBkashGateway struct {
	mock        bool
	status      *bkash.PaymentStatus
	queryErr    error
	otpErr      error
	refundErr   error
	executed    []string
	createdWith []string
}

func (g *fakeBkashGateway) Mock() bool { return g.mock }

func (g *fakeBkashGateway) CreatePayment(_ context.Context, orderID string, amount decimal.Decimal, phone string) (*bkash.CreateResult, error) {
	g.createdWith = append(g.createdWith, orderID)
	return &bkash.CreateResult{PaymentID: "pay_" + orderID, BkashURL: "https://bkash.test/pay_" + orderID}, nil
}

func (g *fakeBkashGateway) ExecutePayment(_ context.Context, paymentID string) (*bkash.ExecuteResult, error) {
	g.executed = append(g.executed, paymentID)
	return &bkash.ExecuteResult{PaymentID: paymentID, Status: bkash.TransactionCompleted}, nil
}

func (g *fakeBkashGateway) QueryPayment(_ context.Context, paymentID, orderID string) (*bkash.PaymentStatus, error) {
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	return g.status, nil
}

func (g *fakeBkashGateway) RefundPayment(_ context.Context, input bkash.RefundInput) (*bkash.RefundResult, error) {
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &bkash.RefundResult{StatusCode: bkash.StatusCodeSuccess, OriginalTrxID: input.TrxID, RefundTrxID: "rf_" + input.TrxID, Amount: input.Amount.StringFixed(2)}, nil
}

func (g *fakeBkashGateway) SendOTP(_ context.Context, phone string) (*bkash.OTPResult, error) {
	if g.otpErr != nil {
		return nil, g.otpErr
	}
	return &bkash.OTPResult{StatusCode: bkash.StatusCodeSuccess, CustomerMsisdn: phone}, nil
}

func (g *fakeBkashGateway) VerifyOTP(_ context.Context, phone, otp string) (*bkash.OTPResult, error) {
	if g.otpErr != nil {
		return nil, g.otpErr
	}
	return &bkash.OTPResult{StatusCode: bkash.StatusCodeSuccess, CustomerMsisdn: phone}, nil
}

func completedStatus(orderID uint) *bkash.PaymentStatus {
	return &bkash.PaymentStatus{
		StatusCode:            bkash.StatusCodeSuccess,
		StatusMessage:         "Successful",
		PaymentID:             "pay_1",
		TransactionStatus:     bkash.TransactionCompleted,
		TrxID:                 "TRX123",
		MerchantInvoiceNumber: strconv.FormatUint(uint64(orderID), 10),
		Amount:                "149.97",
	}
}

func TestSettlementServiceBkashCallbackMarksPaidAndSettles(t *testing.T) {
	f := setupAffiliateFixture(t)
	affiliate := f.createUser(t, "affiliate", true)
	jeans := f.createProduct(t, "Blue Jeans", "blue-jeans", "Jeans", "49.99", true)
	order := f.createOrder(t, affiliate.ID, false, orderLine{product: jeans, category: "Jeans", price: "49.99", quantity: 3})

	gateway := &fakeBkashGateway{status: completedStatus(order.ID)}
	svc := NewSettlementService(f.earningService(), f.orderRepo, SettlementOptions{Bkash: gateway})
	ctx := context.Background()

	result, err := svc.HandleBkashCallback(ctx, BkashCallbackInput{PaymentID: "pay_1", Status: "success"})
	require.NoError(t, err)
	assert.False(t, result.AlreadyPaid)
	assert.True(t, result.Settled)
	require.Len(t, result.Earnings, 1)
	assert.Equal(t, "10.50", result.Earnings[0].CommissionAmount.StringFixed(2))
	assert.Equal(t, []string{"pay_1"}, gateway.executed)

	stored, err := f.orderRepo.GetByID(order.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPaid)
	require.NotNil(t, stored.PaidAt)
	assert.Equal(t, constants.PaymentMethodBkash, stored.PaymentMethod)
	assert.Equal(t, "TRX123", stored.PaymentResult["id"])

	// 重复回调不会重复结算
	again, err := svc.HandleBkashCallback(ctx, BkashCallbackInput{PaymentID: "pay_1"})
	require.NoError(t, err)
	assert.True(t, again.AlreadyPaid)
	var count int64
	f.db.Model(&models.AffiliateEarning{}).Where("order_id = ?", order.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

// flakyEarningRepository 前 n 次事务返回瞬时错误
type flakyEarningRepository struct {
	repository.EarningRepository
	failures atomic.Int32
}

func (r *flakyEarningRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if r.failures.Add(-1) >= 0 {
		return errors.New("database is locked")
	}
	return r.EarningRepository.Transaction(fn)
}

func TestSettlementServiceBkashCallbackRetrySettlesPaidOrder(t *testing.T) {
	f := setupAffiliateFixture(t)
	affiliate := f.createUser(t, "affiliate", true)
	watch := f.createProduct(t, "Field Watch", "field-watch", "Watches", "75.50", true)
	order := f.createOrder(t, affiliate.ID, false, orderLine{product: watch, category: "Watches", price: "75.50", quantity: 1})

	repo := &flakyEarningRepository{EarningRepository: f.earningRepo}
	repo.failures.Store(1)
	earnings := NewEarningService(repo, f.orderRepo, f.productRepo, DefaultCommissionRules(), nil)
	gateway := &fakeBkashGateway{mock: true, status: completedStatus(order.ID)}
	svc := NewSettlementService(earnings, f.orderRepo, SettlementOptions{Bkash: gateway})
	ctx := context.Background()

	first, err := svc.HandleBkashCallback(ctx, BkashCallbackInput{PaymentID: "pay_1", Status: "Completed"})
	require.NoError(t, err)
	assert.False(t, first.AlreadyPaid)
	assert.False(t, first.Settled)
	assert.False(t, first.SettlementQueued)

	countEarnings := func() int64 {
		var count int64
		f.db.Model(&models.AffiliateEarning{}).Where("order_id = ?", order.ID).Count(&count)
		return count
	}
	assert.Equal(t, int64(0), countEarnings())

	// 订单已支付，重复回调补齐结算
	retried, err := svc.HandleBkashCallback(ctx, BkashCallbackInput{PaymentID: "pay_1", Status: "Completed"})
	require.NoError(t, err)
	assert.True(t, retried.AlreadyPaid)
	assert.True(t, retried.Settled)
	require.Len(t, retried.Earnings, 1)
	assert.Equal(t, "7.55", retried.Earnings[0].CommissionAmount.StringFixed(2))
	assert.Equal(t, int64(1), countEarnings())

	third, err := svc.HandleBkashCallback(ctx, BkashCallbackInput{PaymentID: "pay_1", Status: "Completed"})
	require.NoError(t, err)
	assert.True(t, third.Settled)
	assert.Empty(t, third.Earnings)
	assert.Equal(t, int64(1), countEarnings())
}

func TestSettlementServiceBkashCallbackFailures(t *testing.T) {
	f := setupAffiliateFixture(t)
	shoe := f.createProduct(t, "Runner", "runner", "Shoes", "80.00", true)
	order := f.createOrder(t, 0, false, orderLine{product: shoe, category: "Shoes", price: "80.00", quantity: 1})
	ctx := context.Background()

	cases := []struct {
		name   string
		status *bkash.PaymentStatus
		kind   error
		msg    string
	}{
		{"verification", &bkash.PaymentStatus{StatusCode: "2056", StatusMessage: "Invalid Payment State"}, ErrPaymentVerification, "Payment verification failed"},
		{"failed", &bkash.PaymentStatus{StatusCode: bkash.StatusCodeSuccess, TransactionStatus: bkash.TransactionFailed}, ErrPaymentFailed, "Payment failed"},
		{"cancelled", &bkash.PaymentStatus{StatusCode: bkash.StatusCodeSuccess, TransactionStatus: bkash.TransactionCancelled}, ErrPaymentFailed, "Payment cancelled"},
		{"unknown", &bkash.PaymentStatus{StatusCode: bkash.StatusCodeSuccess, TransactionStatus: "Initiated"}, ErrPaymentStatusUnknown, "Unknown payment status: Initiated"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewSettlementService(f.earningService(), f.orderRepo, SettlementOptions{Bkash: &fakeBkashGateway{status: tc.status}})
			_, err := svc.HandleBkashCallback(ctx, BkashCallbackInput{PaymentID: "pay_x"})
			require.ErrorIs(t, err, tc.kind)
			assert.Equal(t, tc.msg, err.Error())
		})
	}

	svc := NewSettlementService(f.earningService(), f.orderRepo, SettlementOptions{Bkash: &fakeBkashGateway{}})
	_, err := svc.HandleBkashCallback(ctx, BkashCallbackInput{})
	require.ErrorIs(t, err, ErrValidation)

	missing := completedStatus(order.ID + 100)
	svc = NewSettlementService(f.earningService(), f.orderRepo, SettlementOptions{Bkash: &fakeBkashGateway{status: missing}})
	_, err = svc.HandleBkashCallback(ctx, BkashCallbackInput{PaymentID: "pay_x"})
	require.ErrorIs(t, err, ErrOrderNotFound)

	network := fmt.Errorf("%w: dial tcp: connection refused", bkash.ErrNetwork)
	svc = NewSettlementService(f.earningService(), f.orderRepo, SettlementOptions{Bkash: &fakeBkashGateway{queryErr: network}})
	_, err = svc.HandleBkashCallback(ctx, BkashCallbackInput{PaymentID: "pay_x"})
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	// 无推广用户的订单只标记支付
	svc = NewSettlementService(f.earningService(), f.orderRepo, SettlementOptions{Bkash: &fakeBkashGateway{status: completedStatus(order.ID)}})
	result, err := svc.HandleBkashCallback(ctx, BkashCallbackInput{PaymentID: "pay_x"})
	require.NoError(t, err)
	assert.False(t, result.Settled)
	assert.Empty(t, result.Earnings)
}

func TestSettlementServiceManualSettleRequiresPaidOrder(t *testing.T) {
	f := setupAffiliateFixture(t)
	affiliate := f.createUser(t, "affiliate", true)
	shoe := f.createProduct(t, "Runner", "runner", "Shoes", "80.00", true)
	unpaid := f.createOrder(t, affiliate.ID, false, orderLine{product: shoe, category: "Shoes", price: "80.00", quantity: 1})
	svc := NewSettlementService(f.earningService(), f.orderRepo, SettlementOptions{RequirePaidOrder: true})
	ctx := context.Background()

	_, err := svc.SettleOrder(ctx, unpaid.ID, 0)
	require.ErrorIs(t, err, ErrOrderNotPaid)
	_, err = svc.SettleOrder(ctx, 9999, 0)
	require.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.orderRepo.MarkPaid(unpaid.ID, time.Now(), "manual", nil)
	require.NoError(t, err)
	earnings, err := svc.SettleOrder(ctx, unpaid.ID, 0)
	require.NoError(t, err)
	require.Len(t, earnings, 1)
	assert.Equal(t, "4.00", earnings[0].CommissionAmount.StringFixed(2))

	_, err = svc.SettleOrder(ctx, unpaid.ID, 0)
	require.ErrorIs(t, err, ErrAlreadySettled)

	// 队列重试遇到已结算视为成功
	require.NoError(t, svc.RetrySettlement(ctx, queue.SettleOrderPayload{OrderID: unpaid.ID}))
}

func signedStripeEvent(t *testing.T, secret string, now time.Time, eventType string, metadata map[string]interface{}) (map[string]string, []byte) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":   "evt_1",
		"type": eventType,
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"object":          "payment_intent",
				"id":              "pi_1",
				"status":          "succeeded",
				"currency":        "usd",
				"amount_received": 14997,
				"created":         now.Unix(),
				"metadata":        metadata,
			},
		},
	})
	require.NoError(t, err)
	return map[string]string{"Stripe-Signature": stripe.SignPayload(secret, now.Unix(), body)}, body
}

func TestSettlementServiceStripeWebhook(t *testing.T) {
	f := setupAffiliateFixture(t)
	affiliate := f.createUser(t, "affiliate", true)
	jeans := f.createProduct(t, "Blue Jeans", "blue-jeans", "Jeans", "49.99", true)
	order := f.createOrder(t, 0, false, orderLine{product: jeans, category: "Jeans", price: "49.99", quantity: 3})

	now := time.Unix(1760000000, 0)
	cfg := &stripe.Config{WebhookSecret: "whsec_test", WebhookToleranceSeconds: 300}
	svc := NewSettlementService(f.earningService(), f.orderRepo, SettlementOptions{Stripe: cfg})
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	headers, body := signedStripeEvent(t, cfg.WebhookSecret, now, stripe.EventPaymentIntentSucceeded, map[string]interface{}{
		"orderId":   strconv.FormatUint(uint64(order.ID), 10),
		"affiliate": strconv.FormatUint(uint64(affiliate.ID), 10),
	})
	result, err := svc.HandleStripeWebhook(ctx, headers, body)
	require.NoError(t, err)
	assert.True(t, result.Handled)
	require.NotNil(t, result.Result)
	assert.True(t, result.Result.Settled)
	require.Len(t, result.Result.Earnings, 1)
	assert.Equal(t, affiliate.ID, result.Result.Earnings[0].AffiliateUserID)

	// 重放同一事件
	again, err := svc.HandleStripeWebhook(ctx, headers, body)
	require.NoError(t, err)
	assert.True(t, again.Result.AlreadyPaid)
	var count int64
	f.db.Model(&models.AffiliateEarning{}).Where("order_id = ?", order.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	ignoredHeaders, ignoredBody := signedStripeEvent(t, cfg.WebhookSecret, now, "charge.refunded", map[string]interface{}{})
	ignored, err := svc.HandleStripeWebhook(ctx, ignoredHeaders, ignoredBody)
	require.NoError(t, err)
	assert.False(t, ignored.Handled)

	headers["Stripe-Signature"] = stripe.SignPayload("whsec_other", now.Unix(), body)
	_, err = svc.HandleStripeWebhook(ctx, headers, body)
	require.ErrorIs(t, err, ErrWebhookSignature)
}

func TestSettlementServiceConfirmStripePayment(t *testing.T) {
	f := setupAffiliateFixture(t)
	affiliate := f.createUser(t, "affiliate", true)
	watch := f.createProduct(t, "Smart Watch", "smart-watch", "Watches", "200.00", true)
	order := f.createOrder(t, affiliate.ID, false, orderLine{product: watch, category: "Watches", price: "200.00", quantity: 1})
	orderRef := strconv.FormatUint(uint64(order.ID), 10)

	intents := map[string]map[string]interface{}{
		"pi_ok":      {"id": "pi_ok", "status": "succeeded", "currency": "usd", "amount": 20000, "metadata": map[string]interface{}{"orderId": orderRef}},
		"pi_pending": {"id": "pi_pending", "status": "processing", "currency": "usd", "amount": 20000, "metadata": map[string]interface{}{"orderId": orderRef}},
		"pi_other":   {"id": "pi_other", "status": "succeeded", "currency": "usd", "amount": 20000, "metadata": map[string]interface{}{"orderId": "99999"}},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/v1/payment_intents/"):]
		intent, ok := intents[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"No such payment_intent"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(intent)
	}))
	defer server.Close()

	cfg := &stripe.Config{SecretKey: "sk_test", APIBaseURL: server.URL}
	svc := NewSettlementService(f.earningService(), f.orderRepo, SettlementOptions{Stripe: cfg})
	ctx := context.Background()

	_, err := svc.ConfirmStripePayment(ctx, StripeConfirmInput{OrderID: order.ID, PaymentIntentID: "pi_other"})
	require.ErrorIs(t, err, ErrPaymentOrderMismatch)
	_, err = svc.ConfirmStripePayment(ctx, StripeConfirmInput{OrderID: order.ID, PaymentIntentID: "pi_pending"})
	require.ErrorIs(t, err, ErrPaymentNotSucceeded)
	_, err = svc.ConfirmStripePayment(ctx, StripeConfirmInput{OrderID: order.ID})
	require.ErrorIs(t, err, ErrValidation)

	result, err := svc.ConfirmStripePayment(ctx, StripeConfirmInput{OrderID: order.ID, PaymentIntentID: "pi_ok"})
	require.NoError(t, err)
	assert.True(t, result.Settled)
	require.Len(t, result.Earnings, 1)
	assert.Equal(t, "20.00", result.Earnings[0].CommissionAmount.StringFixed(2))

	again, err := svc.ConfirmStripePayment(ctx, StripeConfirmInput{OrderID: order.ID, PaymentIntentID: "pi_ok"})
	require.NoError(t, err)
	assert.True(t, again.AlreadyPaid)
	assert.True(t, again.Settled)
	assert.Empty(t, again.Earnings)

	noStripe := NewSettlementService(f.earningService(), f.orderRepo, SettlementOptions{})
	_, err = noStripe.ConfirmStripePayment(ctx, StripeConfirmInput{OrderID: order.ID, PaymentIntentID: "pi_ok"})
	require.True(t, errors.Is(err, ErrGatewayUnavailable))
}

func TestSettlementServiceReconcilePaidOrders(t *testing.T) {
	f := setupAffiliateFixture(t)
	affiliate := f.createUser(t, "affiliate", true)
	shoe := f.createProduct(t, "Runner", "runner", "Shoes", "80.00", true)
	paid := f.createOrder(t, affiliate.ID, true, orderLine{product: shoe, category: "Shoes", price: "80.00", quantity: 1})
	f.createOrder(t, affiliate.ID, false, orderLine{product: shoe, category: "Shoes", price: "80.00", quantity: 1})
	f.createOrder(t, 0, true, orderLine{product: shoe, category: "Shoes", price: "80.00", quantity: 1})

	svc := NewSettlementService(f.earningService(), f.orderRepo, SettlementOptions{})
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	ctx := context.Background()

	settled, err := svc.ReconcilePaidOrders(ctx, time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	var count int64
	f.db.Model(&models.AffiliateEarning{}).Where("order_id = ?", paid.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	settled, err = svc.ReconcilePaidOrders(ctx, time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/NishadApi25/final-year-project/internal/payment/bkash"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBkashServiceCreatePayment(t *testing.T) {
	f := setupAffiliateFixture(t)
	shoe := f.createProduct(t, "Runner", "runner", "Shoes", "80.00", true)
	order := f.createOrder(t, 0, false, orderLine{product: shoe, category: "Shoes", price: "80.00", quantity: 1})
	gateway := &fakeBkashGateway{}
	svc := NewBkashService(gateway, f.orderRepo, false, nil)
	ctx := context.Background()

	_, err := svc.CreatePayment(ctx, BkashCreatePaymentInput{OrderID: order.ID, Amount: decimal.RequireFromString("80")})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Missing required fields")

	_, err = svc.CreatePayment(ctx, BkashCreatePaymentInput{OrderID: 9999, Amount: decimal.RequireFromString("80"), CustomerPhone: "01712345678"})
	require.ErrorIs(t, err, ErrOrderNotFound)

	result, err := svc.CreatePayment(ctx, BkashCreatePaymentInput{OrderID: order.ID, Amount: decimal.RequireFromString("80"), CustomerPhone: "01712345678"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.PaymentID)
	assert.Equal(t, []string{fmt.Sprintf("%d", order.ID)}, gateway.createdWith)
}

func TestBkashServiceOTPDevFallback(t *testing.T) {
	network := fmt.Errorf("%w: dial tcp: i/o timeout", bkash.ErrNetwork)
	ctx := context.Background()

	dev := NewBkashService(&fakeBkashGateway{otpErr: network}, nil, false, nil)
	sent, err := dev.SendOTP(ctx, "01712345678")
	require.NoError(t, err)
	assert.Equal(t, bkash.MockOTP, sent.MockOTP)
	assert.Equal(t, devFallbackNote, sent.Note)

	verified, err := dev.VerifyOTP(ctx, "01712345678", "654321")
	require.NoError(t, err)
	assert.Equal(t, devFallbackNote, verified.Note)

	_, err = dev.VerifyOTP(ctx, "01712345678", "12ab")
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Invalid OTP format. Use 6 digits.")

	// 生产环境不降级
	prod := NewBkashService(&fakeBkashGateway{otpErr: network}, nil, true, nil)
	_, err = prod.SendOTP(ctx, "01712345678")
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	// 网关拒绝不降级
	rejected := &bkash.RejectedError{Operation: "verify_otp", StatusCode: "2001", StatusMessage: "Invalid OTP"}
	svc := NewBkashService(&fakeBkashGateway{otpErr: rejected}, nil, false, nil)
	_, err = svc.VerifyOTP(ctx, "01712345678", "000000")
	var gatewayErr *GatewayError
	require.True(t, errors.As(err, &gatewayErr))
	assert.ErrorIs(t, err, ErrGatewayRejected)
	assert.Equal(t, "Invalid OTP", gatewayErr.Message)

	_, err = svc.SendOTP(ctx, " ")
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.VerifyOTP(ctx, "01712345678", "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestBkashServiceWithMockClient(t *testing.T) {
	client, err := bkash.NewClient(bkash.Config{Mock: true, CallbackURL: "http://localhost:4007/api/bkash/callback"})
	require.NoError(t, err)
	svc := NewBkashService(client, nil, false, nil)
	ctx := context.Background()

	sent, err := svc.SendOTP(ctx, "01712345678")
	require.NoError(t, err)
	assert.Equal(t, bkash.MockOTP, sent.MockOTP)

	_, err = svc.VerifyOTP(ctx, "01712345678", bkash.MockOTP)
	require.NoError(t, err)
	_, err = svc.VerifyOTP(ctx, "01712345678", "111111")
	require.ErrorIs(t, err, ErrGatewayRejected)
	assert.Equal(t, "Invalid OTP. Use 123456 for testing.", err.Error())
}

func TestBkashServiceRefund(t *testing.T) {
	svc := NewBkashService(&fakeBkashGateway{}, nil, true, nil)
	ctx := context.Background()

	_, err := svc.Refund(ctx, BkashRefundInput{PaymentID: "pay_1", Amount: decimal.RequireFromString("10")})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Refund(ctx, BkashRefundInput{PaymentID: "pay_1", TrxID: "TRX1"})
	require.ErrorIs(t, err, ErrValidation)

	result, err := svc.Refund(ctx, BkashRefundInput{PaymentID: "pay_1", TrxID: "TRX1", Amount: decimal.RequireFromString("10"), Reason: "customer request"})
	require.NoError(t, err)
	assert.Equal(t, "rf_TRX1", result.RefundTrxID)

	failing := NewBkashService(&fakeBkashGateway{refundErr: &bkash.RejectedError{Operation: "refund", StatusMessage: "Refund amount exceeds"}}, nil, true, nil)
	_, err = failing.Refund(ctx, BkashRefundInput{PaymentID: "pay_1", TrxID: "TRX1", Amount: decimal.RequireFromString("10")})
	require.ErrorIs(t, err, ErrGatewayRejected)
	assert.Equal(t, "Refund amount exceeds", err.Error())
}

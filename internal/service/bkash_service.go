package service

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/NishadApi25/final-year-project/internal/logger"
	"github.com/NishadApi25/final-year-project/internal/metrics"
	"github.com/NishadApi25/final-year-project/internal/payment/bkash"
	"github.com/NishadApi25/final-year-project/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	gatewayBkash     = "bkash"
	devFallbackNote  = "dev-fallback"
	bkashUnreachable = "bKash gateway is unreachable"
)

var sixDigitOTP = regexp.MustCompile(`^\d{6}$`)

// BkashGateway bKash 网关能力
type BkashGateway interface {
	Mock() bool
	CreatePayment(ctx context.Context, orderID string, amount decimal.Decimal, phone string) (*bkash.CreateResult, error)
	ExecutePayment(ctx context.Context, paymentID string) (*bkash.ExecuteResult, error)
	QueryPayment(ctx context.Context, paymentID, orderID string) (*bkash.PaymentStatus, error)
	RefundPayment(ctx context.Context, input bkash.RefundInput) (*bkash.RefundResult, error)
	SendOTP(ctx context.Context, phone string) (*bkash.OTPResult, error)
	VerifyOTP(ctx context.Context, phone, otp string) (*bkash.OTPResult, error)
}

// BkashService bKash 支付与验证码
type BkashService struct {
	gateway    BkashGateway
	orderRepo  repository.OrderRepository
	production bool
	metrics    *metrics.Metrics
}

// NewBkashService 创建 bKash 服务；production 为 false 时网络故障可降级为模拟验证码
func NewBkashService(gateway BkashGateway, orderRepo repository.OrderRepository, production bool, m *metrics.Metrics) *BkashService {
	return &BkashService{
		gateway:    gateway,
		orderRepo:  orderRepo,
		production: production,
		metrics:    m,
	}
}

// BkashCreatePaymentInput 创建支付输入
type BkashCreatePaymentInput struct {
	OrderID       uint
	Amount        decimal.Decimal
	CustomerPhone string
}

// OTPResponse 验证码接口返回
type OTPResponse struct {
	Message        string `json:"message"`
	CustomerMsisdn string `json:"customerMsisdn"`
	MockOTP        string `json:"mockOtp,omitempty"`
	Note           string `json:"note,omitempty"`
}

// BkashRefundInput 退款输入
type BkashRefundInput struct {
	PaymentID string
	TrxID     string
	Amount    decimal.Decimal
	Reason    string
}

// CreatePayment 校验订单后向网关创建支付
func (s *BkashService) CreatePayment(ctx context.Context, input BkashCreatePaymentInput) (*bkash.CreateResult, error) {
	phone := strings.TrimSpace(input.CustomerPhone)
	if input.OrderID == 0 || !input.Amount.GreaterThan(decimal.Zero) || phone == "" {
		return nil, validationError("Missing required fields")
	}
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	result, err := s.gateway.CreatePayment(ctx, strconv.FormatUint(uint64(order.ID), 10), input.Amount, phone)
	if err != nil {
		s.recordGateway("create_payment", err)
		logger.Ctx(ctx).Warnw("bkash_create_payment_failed", "order_id", order.ID, "error", err)
		return nil, wrapGatewayError(err)
	}
	s.recordGateway("create_payment", nil)
	logger.Ctx(ctx).Infow("bkash_payment_created", "order_id", order.ID, "payment_id", result.PaymentID, "mock", s.gateway.Mock())
	return result, nil
}

// SendOTP 发送验证码；非生产环境下网络故障返回模拟验证码
func (s *BkashService) SendOTP(ctx context.Context, phone string) (*OTPResponse, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, validationError("Phone number is required")
	}
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	result, err := s.gateway.SendOTP(ctx, phone)
	if err != nil {
		if !s.production && bkash.IsNetworkError(err) {
			s.metrics.GatewayRequest(gatewayBkash, "send_otp", metrics.ResultMock)
			logger.Ctx(ctx).Warnw("bkash_send_otp_dev_fallback", "error", err)
			return &OTPResponse{
				Message:        "OTP sent successfully (dev fallback)",
				CustomerMsisdn: phone,
				MockOTP:        bkash.MockOTP,
				Note:           devFallbackNote,
			}, nil
		}
		s.recordGateway("send_otp", err)
		logger.Ctx(ctx).Warnw("bkash_send_otp_failed", "error", err)
		return nil, wrapGatewayError(err)
	}
	s.recordGateway("send_otp", nil)
	return &OTPResponse{
		Message:        "OTP sent successfully",
		CustomerMsisdn: firstNonEmpty(result.CustomerMsisdn, phone),
		MockOTP:        result.MockOTP,
	}, nil
}

// VerifyOTP 校验验证码；非生产环境下网络故障时接受任意 6 位数字
func (s *BkashService) VerifyOTP(ctx context.Context, phone, otp string) (*OTPResponse, error) {
	phone = strings.TrimSpace(phone)
	otp = strings.TrimSpace(otp)
	if phone == "" || otp == "" {
		return nil, validationError("Phone number and OTP are required")
	}
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	result, err := s.gateway.VerifyOTP(ctx, phone, otp)
	if err != nil {
		if !s.production && bkash.IsNetworkError(err) {
			s.metrics.GatewayRequest(gatewayBkash, "verify_otp", metrics.ResultMock)
			logger.Ctx(ctx).Warnw("bkash_verify_otp_dev_fallback", "error", err)
			if !sixDigitOTP.MatchString(otp) {
				return nil, validationError("Invalid OTP format. Use 6 digits.")
			}
			return &OTPResponse{
				Message:        "OTP verified successfully (dev fallback)",
				CustomerMsisdn: phone,
				Note:           devFallbackNote,
			}, nil
		}
		s.recordGateway("verify_otp", err)
		return nil, wrapGatewayError(err)
	}
	s.recordGateway("verify_otp", nil)
	return &OTPResponse{
		Message:        "OTP verified successfully",
		CustomerMsisdn: firstNonEmpty(result.CustomerMsisdn, phone),
	}, nil
}

// Refund 管理端退款
func (s *BkashService) Refund(ctx context.Context, input BkashRefundInput) (*bkash.RefundResult, error) {
	if strings.TrimSpace(input.PaymentID) == "" || strings.TrimSpace(input.TrxID) == "" {
		return nil, validationError("paymentID and trxID are required")
	}
	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, validationError("Invalid amount")
	}
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	result, err := s.gateway.RefundPayment(ctx, bkash.RefundInput{
		PaymentID: input.PaymentID,
		TrxID:     input.TrxID,
		Amount:    input.Amount,
		Reason:    input.Reason,
	})
	if err != nil {
		s.recordGateway("refund", err)
		logger.Ctx(ctx).Warnw("bkash_refund_failed", "payment_id", input.PaymentID, "error", err)
		return nil, wrapGatewayError(err)
	}
	s.recordGateway("refund", nil)
	logger.Ctx(ctx).Infow("bkash_refund_completed", "payment_id", input.PaymentID, "refund_trx_id", result.RefundTrxID)
	return result, nil
}

func (s *BkashService) recordGateway(operation string, err error) {
	s.metrics.GatewayRequest(gatewayBkash, operation, gatewayResult(err))
}

func gatewayResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case bkash.IsNetworkError(err):
		return metrics.ResultNetwork
	default:
		return metrics.ResultRejected
	}
}

// wrapGatewayError 区分网络故障与网关拒绝
func wrapGatewayError(err error) error {
	if err == nil {
		return nil
	}
	if bkash.IsNetworkError(err) {
		return &GatewayError{Kind: ErrGatewayUnavailable, Message: bkashUnreachable, Err: err}
	}
	if msg, ok := bkash.RejectionMessage(err); ok {
		return &GatewayError{Kind: ErrGatewayRejected, Message: msg, Err: err}
	}
	return &GatewayError{Kind: ErrGatewayRejected, Message: err.Error(), Err: err}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

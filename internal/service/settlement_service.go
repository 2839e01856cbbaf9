package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/NishadApi25/final-year-project/internal/constants"
	"github.com/NishadApi25/final-year-project/internal/logger"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/payment/bkash"
	"github.com/NishadApi25/final-year-project/internal/payment/stripe"
	"github.com/NishadApi25/final-year-project/internal/queue"
	"github.com/NishadApi25/final-year-project/internal/repository"
)

// SettlementService 支付成功后的订单结算入口
type SettlementService struct {
	earnings    *EarningService
	orderRepo   repository.OrderRepository
	bkash       BkashGateway
	stripe      *stripe.Config
	queueClient *queue.Client
	requirePaid bool
	now         func() time.Time
}

// SettlementOptions 结算入口配置
type SettlementOptions struct {
	Bkash       BkashGateway
	Stripe      *stripe.Config
	QueueClient *queue.Client
	// RequirePaidOrder 手动结算是否要求订单已支付
	RequirePaidOrder bool
}

// NewSettlementService 创建结算服务
func NewSettlementService(earnings *EarningService, orderRepo repository.OrderRepository, opts SettlementOptions) *SettlementService {
	return &SettlementService{
		earnings:    earnings,
		orderRepo:   orderRepo,
		bkash:       opts.Bkash,
		stripe:      opts.Stripe,
		queueClient: opts.QueueClient,
		requirePaid: opts.RequirePaidOrder,
		now:         time.Now,
	}
}

// BkashCallbackInput bKash 回调参数
type BkashCallbackInput struct {
	PaymentID string
	OrderID   string
	Status    string
}

// StripeConfirmInput Stripe 支付成功页确认参数
type StripeConfirmInput struct {
	OrderID         uint
	PaymentIntentID string
	AffiliateUserID uint
}

// SettlementResult 结算入口返回
type SettlementResult struct {
	OrderID          uint                      `json:"orderId"`
	AlreadyPaid      bool                      `json:"alreadyPaid"`
	Settled          bool                      `json:"settled"`
	SettlementQueued bool                      `json:"settlementQueued,omitempty"`
	Earnings         []models.AffiliateEarning `json:"earnings,omitempty"`
	Message          string                    `json:"message"`
}

// StripeWebhookResult Webhook 处理结果
type StripeWebhookResult struct {
	EventID   string            `json:"eventId"`
	EventType string            `json:"eventType"`
	Handled   bool              `json:"handled"`
	Result    *SettlementResult `json:"result,omitempty"`
}

// SettleOrder 手动结算入口（record-earning）
func (s *SettlementService) SettleOrder(ctx context.Context, orderID, affiliateUserID uint) ([]models.AffiliateEarning, error) {
	if orderID == 0 {
		return nil, validationError("Missing orderId")
	}
	if s.requirePaid {
		order, err := s.orderRepo.GetByID(orderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, ErrOrderNotFound
		}
		if !order.IsPaid {
			return nil, ErrOrderNotPaid
		}
	}
	earnings, err := s.earnings.SettleOrder(orderID, SettleOptions{
		AffiliateUserID: affiliateUserID,
		Source:          constants.SettlementSourceManual,
	})
	if err != nil {
		return earnings, err
	}
	if len(earnings) > 0 {
		invalidateOverview(ctx, earnings[0].AffiliateUserID)
	}
	return earnings, nil
}

// HandleBkashCallback 校验 bKash 交易状态，成功时标记订单已支付并结算佣金
func (s *SettlementService) HandleBkashCallback(ctx context.Context, input BkashCallbackInput) (*SettlementResult, error) {
	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID == "" {
		return nil, validationError("Missing paymentID")
	}
	if s.bkash == nil {
		return nil, ErrGatewayNotConfigured
	}
	log := logger.Ctx(ctx)

	// 真实网关回调 status=success 时需先执行支付
	if strings.EqualFold(strings.TrimSpace(input.Status), "success") && !s.bkash.Mock() {
		if _, err := s.bkash.ExecutePayment(ctx, paymentID); err != nil {
			log.Warnw("bkash_execute_payment_failed", "payment_id", paymentID, "error", err)
		}
	}

	status, err := s.bkash.QueryPayment(ctx, paymentID, input.OrderID)
	if err != nil {
		log.Warnw("bkash_query_payment_failed", "payment_id", paymentID, "error", err)
		return nil, wrapGatewayError(err)
	}
	if !status.Succeeded() {
		return nil, &PaymentStatusError{Kind: ErrPaymentVerification, Status: status.StatusCode, Message: "Payment verification failed"}
	}

	switch status.TransactionStatus {
	case bkash.TransactionCompleted:
	case bkash.TransactionFailed:
		return nil, &PaymentStatusError{Kind: ErrPaymentFailed, Status: status.TransactionStatus, Message: "Payment failed"}
	case bkash.TransactionCancelled:
		return nil, &PaymentStatusError{Kind: ErrPaymentFailed, Status: status.TransactionStatus, Message: "Payment cancelled"}
	default:
		return nil, &PaymentStatusError{
			Kind:    ErrPaymentStatusUnknown,
			Status:  status.TransactionStatus,
			Message: fmt.Sprintf("Unknown payment status: %s", status.TransactionStatus),
		}
	}

	order, err := s.findOrder(status.MerchantInvoiceNumber)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		// 重复回调补结算，已结算时幂等
		result := &SettlementResult{OrderID: order.ID, AlreadyPaid: true, Message: "Order already paid"}
		s.settleIfAffiliate(ctx, order, 0, constants.SettlementSourceBkash, result)
		return result, nil
	}

	result, err := s.markPaidAndSettle(ctx, order, constants.PaymentMethodBkash, models.JSON{
		"id":        firstNonEmpty(status.TrxID, paymentID),
		"paymentId": paymentID,
		"status":    status.TransactionStatus,
		"pricePaid": status.Amount,
	}, constants.SettlementSourceBkash, 0)
	if err != nil {
		return nil, err
	}
	if !result.AlreadyPaid {
		result.Message = "Payment processed successfully"
	}
	return result, nil
}

// HandleStripeWebhook 校验签名，payment_intent.succeeded 时标记支付并结算
func (s *SettlementService) HandleStripeWebhook(ctx context.Context, headers map[string]string, body []byte) (*StripeWebhookResult, error) {
	if s.stripe == nil || strings.TrimSpace(s.stripe.WebhookSecret) == "" {
		return nil, ErrStripeNotConfigured
	}
	log := logger.Ctx(ctx)
	event, err := stripe.VerifyAndParseWebhook(s.stripe, headers, body, s.now())
	if err != nil {
		if errors.Is(err, stripe.ErrSignatureInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
		}
		return nil, validationError(err.Error())
	}

	out := &StripeWebhookResult{EventID: event.EventID, EventType: event.EventType}
	if event.EventType != stripe.EventPaymentIntentSucceeded {
		log.Debugw("stripe_webhook_event_ignored", "event_id", event.EventID, "event_type", event.EventType)
		return out, nil
	}
	order, err := s.findOrder(event.OrderID)
	if err != nil {
		log.Warnw("stripe_webhook_order_unresolved", "event_id", event.EventID, "order_id", event.OrderID, "error", err)
		return out, nil
	}

	affiliateHint := parseUintOrZero(event.AffiliateUserID)
	var result *SettlementResult
	if order.IsPaid {
		result = &SettlementResult{OrderID: order.ID, AlreadyPaid: true, Message: "Order already paid"}
		s.settleIfAffiliate(ctx, order, affiliateHint, constants.SettlementSourceStripe, result)
	} else {
		result, err = s.markPaidAndSettle(ctx, order, constants.PaymentMethodStripe, models.JSON{
			"id":        event.PaymentIntentID,
			"status":    stripe.StatusSucceeded,
			"pricePaid": event.Amount,
			"currency":  event.Currency,
		}, constants.SettlementSourceStripe, affiliateHint)
		if err != nil {
			return nil, err
		}
	}
	out.Handled = true
	out.Result = result
	return out, nil
}

// ConfirmStripePayment 支付成功页确认：PaymentIntent 须属于该订单且已成功
func (s *SettlementService) ConfirmStripePayment(ctx context.Context, input StripeConfirmInput) (*SettlementResult, error) {
	paymentIntentID := strings.TrimSpace(input.PaymentIntentID)
	if input.OrderID == 0 || paymentIntentID == "" {
		return nil, validationError("Missing orderId or payment_intent")
	}
	if s.stripe == nil || strings.TrimSpace(s.stripe.SecretKey) == "" {
		return nil, ErrStripeNotConfigured
	}
	order, err := s.orderRepo.GetByID(input.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	intent, err := stripe.RetrievePaymentIntent(ctx, s.stripe, paymentIntentID)
	if err != nil {
		logger.Ctx(ctx).Warnw("stripe_retrieve_payment_intent_failed", "order_id", order.ID, "error", err)
		if errors.Is(err, stripe.ErrRequestFailed) {
			return nil, &GatewayError{Kind: ErrGatewayUnavailable, Message: "Stripe is unreachable", Err: err}
		}
		return nil, &GatewayError{Kind: ErrGatewayRejected, Message: "Stripe rejected the request", Err: err}
	}
	if intent.OrderID == "" || intent.OrderID != strconv.FormatUint(uint64(order.ID), 10) {
		return nil, ErrPaymentOrderMismatch
	}
	if !intent.Succeeded() {
		return nil, ErrPaymentNotSucceeded
	}

	if order.IsPaid {
		result := &SettlementResult{OrderID: order.ID, AlreadyPaid: true, Message: "Order already paid"}
		s.settleIfAffiliate(ctx, order, input.AffiliateUserID, constants.SettlementSourceStripe, result)
		return result, nil
	}
	return s.markPaidAndSettle(ctx, order, constants.PaymentMethodStripe, models.JSON{
		"id":        intent.ID,
		"status":    intent.Status,
		"pricePaid": intent.Amount,
		"currency":  intent.Currency,
	}, constants.SettlementSourceStripe, input.AffiliateUserID)
}

// RetrySettlement 队列重试结算，已结算视为成功
func (s *SettlementService) RetrySettlement(ctx context.Context, payload queue.SettleOrderPayload) error {
	earnings, err := s.earnings.SettleOrder(payload.OrderID, SettleOptions{
		AffiliateUserID: payload.AffiliateUserID,
		Source:          constants.SettlementSourceRetry,
	})
	if errors.Is(err, ErrAlreadySettled) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(earnings) > 0 {
		invalidateOverview(ctx, earnings[0].AffiliateUserID)
	}
	return nil
}

// ReconcilePaidOrders 补结算已支付但未结算的推广订单，返回成功结算的订单数
func (s *SettlementService) ReconcilePaidOrders(ctx context.Context, grace time.Duration, limit int) (int, error) {
	orders, err := s.orderRepo.ListUnsettledPaid(s.now().Add(-grace), limit)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, order := range orders {
		if order.AffiliateUserID == nil {
			continue
		}
		earnings, err := s.earnings.SettleOrder(order.ID, SettleOptions{Source: constants.SettlementSourceRetry})
		switch {
		case err == nil:
			settled++
			invalidateOverview(ctx, *order.AffiliateUserID)
			logger.Ctx(ctx).Infow("affiliate_order_reconciled", "order_id", order.ID, "items", len(earnings))
		case errors.Is(err, ErrAlreadySettled):
		default:
			logger.Ctx(ctx).Warnw("affiliate_order_reconcile_failed", "order_id", order.ID, "error", err)
		}
	}
	return settled, nil
}

func (s *SettlementService) markPaidAndSettle(ctx context.Context, order *models.Order, method string, paymentResult models.JSON, source string, affiliateHint uint) (*SettlementResult, error) {
	paidAt := s.now()
	changed, err := s.orderRepo.MarkPaid(order.ID, paidAt, method, paymentResult)
	if err != nil {
		return nil, err
	}
	result := &SettlementResult{OrderID: order.ID}
	if !changed {
		// 并发回调已完成标记
		result.AlreadyPaid = true
		result.Message = "Order already paid"
		return result, nil
	}
	order.IsPaid = true
	order.PaidAt = &paidAt
	logger.Ctx(ctx).Infow("order_marked_paid", "order_id", order.ID, "method", method)

	s.settleIfAffiliate(ctx, order, affiliateHint, source, result)
	return result, nil
}

// settleIfAffiliate 订单有推广用户时结算；失败不影响支付结果，交由队列重试
func (s *SettlementService) settleIfAffiliate(ctx context.Context, order *models.Order, affiliateHint uint, source string, result *SettlementResult) {
	affiliateUserID := affiliateHint
	if order.AffiliateUserID != nil && *order.AffiliateUserID != 0 {
		affiliateUserID = *order.AffiliateUserID
	}
	if affiliateUserID == 0 {
		return
	}
	log := logger.Ctx(ctx)
	earnings, err := s.earnings.SettleOrder(order.ID, SettleOptions{AffiliateUserID: affiliateUserID, Source: source})
	switch {
	case err == nil:
		result.Settled = true
		result.Earnings = earnings
		invalidateOverview(ctx, affiliateUserID)
	case errors.Is(err, ErrAlreadySettled):
		result.Settled = true
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		log.Warnw("affiliate_settle_skipped", "order_id", order.ID, "error", err)
	default:
		log.Errorw("affiliate_settle_failed", "order_id", order.ID, "source", source, "error", err)
		if qerr := s.queueClient.EnqueueSettleOrder(queue.SettleOrderPayload{
			OrderID:         order.ID,
			AffiliateUserID: affiliateUserID,
			Source:          source,
		}); qerr != nil {
			log.Errorw("affiliate_settle_enqueue_failed", "order_id", order.ID, "error", qerr)
			return
		}
		result.SettlementQueued = s.queueClient.Enabled()
	}
}

func (s *SettlementService) findOrder(rawID string) (*models.Order, error) {
	id := parseUintOrZero(rawID)
	if id == 0 {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func parseUintOrZero(raw string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

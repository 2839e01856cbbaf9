package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrOrderNotFound        = fmt.Errorf("%w: order not found", ErrNotFound)
	ErrProductNotFound      = fmt.Errorf("%w: product not found", ErrNotFound)
	ErrWithdrawalNotFound   = fmt.Errorf("%w: withdrawal not found", ErrNotFound)
	ErrAlreadySettled       = errors.New("earnings already recorded for this order")
	ErrAffiliateMismatch    = fmt.Errorf("%w: affiliate does not match order", ErrValidation)
	ErrOrderNotPaid         = errors.New("order is not paid")
	ErrForbidden            = errors.New("forbidden")
	ErrNotAffiliate         = fmt.Errorf("%w: user is not an affiliate", ErrForbidden)
	ErrWithdrawalNotPending = errors.New("withdrawal is not pending")
	ErrWithdrawalActionBad  = fmt.Errorf("%w: action must be pay or reject", ErrValidation)
	ErrPaymentVerification  = errors.New("payment verification failed")
	ErrPaymentFailed        = errors.New("payment failed")
	ErrPaymentStatusUnknown = errors.New("unknown payment status")
	ErrPaymentOrderMismatch = errors.New("payment does not belong to order")
	ErrPaymentNotSucceeded  = errors.New("payment not succeeded")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrGatewayRejected      = errors.New("payment gateway rejected the request")
	ErrWebhookSignature     = errors.New("webhook signature invalid")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrWithdrawalBusy       = errors.New("another withdrawal is in progress")
	ErrGatewayNotConfigured = fmt.Errorf("%w: gateway not configured", ErrGatewayUnavailable)
	ErrStripeNotConfigured  = fmt.Errorf("%w: stripe not configured", ErrGatewayUnavailable)
	ErrCaptchaRequired      = errors.New("captcha required")
	ErrCaptchaInvalid       = errors.New("captcha invalid")
	ErrCaptchaConfigInvalid = errors.New("captcha not configured")
)

// InsufficientBalanceError 可提现余额不足
type InsufficientBalanceError struct {
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Insufficient balance. Maximum withdrawable amount is %s", e.Available.Round(2).StringFixed(2))
}

// PaymentStatusError 携带网关交易状态
type PaymentStatusError struct {
	Kind    error
	Status  string
	Message string
}

func (e *PaymentStatusError) Error() string {
	return e.Message
}

func (e *PaymentStatusError) Unwrap() error {
	return e.Kind
}

// GatewayError 网关拒绝，携带网关原始信息
type GatewayError struct {
	Kind    error
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

// Is 同时匹配 Kind 与底层网关错误
func (e *GatewayError) Is(target error) bool {
	return target == e.Kind
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func validationError(message string) error {
	return fmt.Errorf("%w: %s", ErrValidation, message)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

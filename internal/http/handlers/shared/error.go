package shared

import (
	"errors"

	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/logger"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应；有原始错误时记录日志，非 release 模式附带错误链。
func RespondError(c *gin.Context, code int, msg string, err error) {
	debug := ""
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", code,
			"message", msg,
			"error", err,
		)
		if gin.Mode() != gin.ReleaseMode {
			debug = err.Error()
		}
	}
	response.ErrorWithDebug(c, code, msg, debug)
}

// MappedError 业务错误到接口错误响应的映射。
// Message 为空时使用错误自身的信息。
type MappedError struct {
	Target  error
	Code    int
	Message string
}

// RespondMappedError 按规则映射业务错误，未命中时返回 fallback。
func RespondMappedError(c *gin.Context, err error, rules []MappedError, fallbackCode int, fallbackMsg string) {
	var insufficient *service.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		response.Error(c, response.CodeBadRequest, insufficient.Error())
		return
	}
	var gatewayErr *service.GatewayError
	if errors.As(err, &gatewayErr) {
		code := response.CodeBadGateway
		if errors.Is(err, service.ErrGatewayRejected) {
			code = response.CodeBadRequest
		}
		RespondError(c, code, gatewayErr.Error(), gatewayErr.Err)
		return
	}
	var statusErr *service.PaymentStatusError
	if errors.As(err, &statusErr) {
		response.ErrorWithFields(c, response.CodeBadRequest, statusErr.Message, gin.H{"status": statusErr.Status})
		return
	}
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			msg := rule.Message
			if msg == "" {
				msg = ValidationMessage(err)
			}
			response.Error(c, rule.Code, msg)
			return
		}
	}
	RespondError(c, fallbackCode, fallbackMsg, err)
}

// ValidationMessage 去掉哨兵前缀，返回面向用户的信息。
func ValidationMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{service.ErrValidation, service.ErrNotFound, service.ErrForbidden} {
		prefix := sentinel.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}

// CommonErrorRules 通用业务错误映射。
var CommonErrorRules = []MappedError{
	{Target: service.ErrValidation, Code: response.CodeBadRequest},
	{Target: service.ErrOrderNotFound, Code: response.CodeNotFound, Message: "Order not found"},
	{Target: service.ErrProductNotFound, Code: response.CodeNotFound, Message: "Product not found"},
	{Target: service.ErrWithdrawalNotFound, Code: response.CodeNotFound, Message: "Withdrawal not found"},
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Message: "Not found"},
	{Target: service.ErrNotAffiliate, Code: response.CodeForbidden, Message: "Only affiliates can perform this action"},
	{Target: service.ErrForbidden, Code: response.CodeForbidden, Message: "Forbidden"},
	{Target: service.ErrAlreadySettled, Code: response.CodeBadRequest, Message: "Earnings already recorded for this order"},
	{Target: service.ErrOrderNotPaid, Code: response.CodeBadRequest, Message: "Order is not paid"},
	{Target: service.ErrWithdrawalNotPending, Code: response.CodeConflict, Message: "Withdrawal is not pending"},
	{Target: service.ErrWithdrawalBusy, Code: response.CodeConflict, Message: "Another withdrawal is in progress, please retry"},
	{Target: service.ErrPaymentOrderMismatch, Code: response.CodeBadRequest, Message: "Payment does not belong to this order"},
	{Target: service.ErrPaymentNotSucceeded, Code: response.CodeBadRequest, Message: "Payment not completed"},
	{Target: service.ErrWebhookSignature, Code: response.CodeBadRequest, Message: "Invalid signature"},
	{Target: service.ErrInvalidCredentials, Code: response.CodeUnauthorized, Message: "Invalid username or password"},
	{Target: service.ErrGatewayUnavailable, Code: response.CodeServiceUnavailable, Message: "Payment gateway is not configured"},
	{Target: service.ErrCaptchaRequired, Code: response.CodeBadRequest, Message: "Captcha is required"},
	{Target: service.ErrCaptchaInvalid, Code: response.CodeBadRequest, Message: "Invalid captcha"},
	{Target: service.ErrCaptchaConfigInvalid, Code: response.CodeServiceUnavailable, Message: "Captcha is unavailable"},
}

package public

import (
	"strings"

	"github.com/NishadApi25/final-year-project/internal/constants"
	"github.com/NishadApi25/final-year-project/internal/http/handlers/shared"
	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/gin-gonic/gin"
)

// BkashCreatePaymentRequest 创建 bKash 支付请求
type BkashCreatePaymentRequest struct {
	OrderID       shared.ID    `json:"orderId"`
	Amount        models.Money `json:"amount"`
	CustomerPhone string       `json:"customerPhone"`
}

// CreateBkashPayment 创建 bKash 支付
func (h *Handler) CreateBkashPayment(c *gin.Context) {
	var req BkashCreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Missing required fields")
		return
	}
	result, err := h.BkashService.CreatePayment(c.Request.Context(), service.BkashCreatePaymentInput{
		OrderID:       req.OrderID.Uint(),
		Amount:        req.Amount.Decimal,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		respondWithMappedError(c, err, "Failed to create payment")
		return
	}
	response.OK(c, gin.H{
		"paymentID": result.PaymentID,
		"bkashURL":  result.BkashURL,
	})
}

// BkashOTPRequest 验证码请求
type BkashOTPRequest struct {
	CustomerPhone  string                       `json:"customerPhone"`
	OTP            string                       `json:"otp"`
	CaptchaPayload shared.CaptchaPayloadRequest `json:"captchaPayload"`
}

// SendBkashOTP 发送验证码
func (h *Handler) SendBkashOTP(c *gin.Context) {
	var req BkashOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Phone number is required")
		return
	}
	if err := h.CaptchaService.Verify(constants.CaptchaSceneBkashSendOTP, req.CaptchaPayload.ToServicePayload()); err != nil {
		respondWithMappedError(c, err, "Captcha verification failed")
		return
	}
	result, err := h.BkashService.SendOTP(c.Request.Context(), req.CustomerPhone)
	if err != nil {
		respondWithMappedError(c, err, "Failed to send OTP")
		return
	}
	response.OK(c, otpPayload(result))
}

// VerifyBkashOTP 校验验证码
func (h *Handler) VerifyBkashOTP(c *gin.Context) {
	var req BkashOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Phone number and OTP are required")
		return
	}
	result, err := h.BkashService.VerifyOTP(c.Request.Context(), req.CustomerPhone, req.OTP)
	if err != nil {
		respondWithMappedError(c, err, "Failed to verify OTP")
		return
	}
	response.OK(c, otpPayload(result))
}

func otpPayload(result *service.OTPResponse) gin.H {
	payload := gin.H{
		"message":        result.Message,
		"customerMsisdn": result.CustomerMsisdn,
	}
	if result.MockOTP != "" {
		payload["mockOtp"] = result.MockOTP
	}
	if result.Note != "" {
		payload["note"] = result.Note
	}
	return payload
}

// BkashCallback bKash 支付完成后的回跳
func (h *Handler) BkashCallback(c *gin.Context) {
	log := requestLog(c)
	input := service.BkashCallbackInput{
		PaymentID: strings.TrimSpace(c.Query("paymentID")),
		OrderID:   strings.TrimSpace(c.Query("orderId")),
		Status:    strings.TrimSpace(c.Query("status")),
	}
	log.Infow("bkash_callback_received",
		"payment_id", input.PaymentID,
		"order_id", input.OrderID,
		"status", input.Status,
		"client_ip", c.ClientIP(),
	)
	result, err := h.SettlementService.HandleBkashCallback(c.Request.Context(), input)
	if err != nil {
		log.Warnw("bkash_callback_handle_failed", "payment_id", input.PaymentID, "error", err)
		respondWithMappedError(c, err, "Callback processing failed")
		return
	}
	response.OK(c, settlementPayload(result))
}

func settlementPayload(result *service.SettlementResult) gin.H {
	payload := gin.H{
		"message": result.Message,
		"orderId": result.OrderID,
		"status":  "Completed",
		"settled": result.Settled,
	}
	if len(result.Earnings) > 0 {
		payload["earnings"] = result.Earnings
	}
	if result.SettlementQueued {
		payload["settlementQueued"] = true
	}
	return payload
}

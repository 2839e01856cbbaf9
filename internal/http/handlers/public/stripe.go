package public

import (
	"io"

	"github.com/NishadApi25/final-year-project/internal/http/handlers/shared"
	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = 1 << 20

// StripeWebhook Stripe webhook 回调
func (h *Handler) StripeWebhook(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Warnw("stripe_webhook_body_read_failed", "error", err)
		respondError(c, response.CodeBadRequest, "Invalid request body", err)
		return
	}
	headers := make(map[string]string)
	for key, values := range c.Request.Header {
		if len(values) == 0 {
			continue
		}
		headers[key] = values[0]
	}
	log.Infow("stripe_webhook_received", "client_ip", c.ClientIP(), "body_size", len(body))

	result, err := h.SettlementService.HandleStripeWebhook(c.Request.Context(), headers, body)
	if err != nil {
		log.Warnw("stripe_webhook_handle_failed", "error", err)
		respondWithMappedError(c, err, "Webhook processing failed")
		return
	}
	payload := gin.H{
		"received":  true,
		"eventId":   result.EventID,
		"eventType": result.EventType,
		"handled":   result.Handled,
	}
	if result.Result != nil {
		payload["orderId"] = result.Result.OrderID
		payload["settled"] = result.Result.Settled
	}
	response.OK(c, payload)
}

// StripeConfirmRequest Stripe 支付成功页确认请求
type StripeConfirmRequest struct {
	OrderID         shared.ID `json:"orderId"`
	PaymentIntentID string    `json:"paymentIntentId"`
	AffiliateUserID shared.ID `json:"affiliateUserId"`
}

// ConfirmStripePayment 支付成功页确认
func (h *Handler) ConfirmStripePayment(c *gin.Context) {
	var req StripeConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Missing orderId or paymentIntentId")
		return
	}
	result, err := h.SettlementService.ConfirmStripePayment(c.Request.Context(), service.StripeConfirmInput{
		OrderID:         req.OrderID.Uint(),
		PaymentIntentID: req.PaymentIntentID,
		AffiliateUserID: req.AffiliateUserID.Uint(),
	})
	if err != nil {
		respondWithMappedError(c, err, "Failed to confirm payment")
		return
	}
	response.OK(c, settlementPayload(result))
}

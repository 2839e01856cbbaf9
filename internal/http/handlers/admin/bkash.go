package admin

import (
	"github.com/NishadApi25/final-year-project/internal/http/handlers/shared"
	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/gin-gonic/gin"
)

// BkashRefundRequest bKash 退款请求
type BkashRefundRequest struct {
	PaymentID string       `json:"paymentID"`
	TrxID     string       `json:"trxID"`
	Amount    models.Money `json:"amount"`
	Reason    string       `json:"reason"`
}

// RefundBkashPayment 后台发起 bKash 退款
func (h *Handler) RefundBkashPayment(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req BkashRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request")
		return
	}
	result, err := h.BkashService.Refund(c.Request.Context(), service.BkashRefundInput{
		PaymentID: req.PaymentID,
		TrxID:     req.TrxID,
		Amount:    req.Amount.Decimal,
		Reason:    req.Reason,
	})
	if err != nil {
		respondWithMappedError(c, err, "Refund failed")
		return
	}
	shared.RequestLog(c).Infow("admin_bkash_refunded",
		"payment_id", req.PaymentID,
		"trx_id", req.TrxID,
		"refund_trx_id", result.RefundTrxID,
		"admin_id", adminID,
	)
	response.OK(c, gin.H{"refund": result})
}

package admin

import (
	"strings"
	"time"

	"github.com/NishadApi25/final-year-project/internal/http/handlers/shared"
	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/gin-gonic/gin"
)

// ListWithdrawals 后台提现列表
func (h *Handler) ListWithdrawals(c *gin.Context) {
	page, pageSize := shared.ParsePagination(c)

	createdFrom, err := parseTimeNullable(strings.TrimSpace(c.Query("created_from")), false)
	if err != nil {
		respondError(c, response.CodeBadRequest, "Invalid created_from", err)
		return
	}
	createdTo, err := parseTimeNullable(strings.TrimSpace(c.Query("created_to")), true)
	if err != nil {
		respondError(c, response.CodeBadRequest, "Invalid created_to", err)
		return
	}

	rows, total, err := h.WithdrawalService.ListAdmin(service.WithdrawalAdminFilter{
		AffiliateUserID: shared.ParseUint(c.Query("affiliateUserId")),
		Status:          strings.TrimSpace(c.Query("status")),
		Page:            page,
		PageSize:        pageSize,
		CreatedFrom:     createdFrom,
		CreatedTo:       createdTo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "Failed to fetch withdrawals", err)
		return
	}
	response.OK(c, gin.H{
		"records":    rows,
		"pagination": response.NewPagination(page, pageSize, total),
	})
}

// ReviewWithdrawalRequest 提现审核请求
type ReviewWithdrawalRequest struct {
	Action string `json:"action" binding:"required"`
	Reason string `json:"reason"`
}

// ReviewWithdrawal 审核提现：pay 或 reject
func (h *Handler) ReviewWithdrawal(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req ReviewWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Missing action")
		return
	}
	withdrawal, err := h.WithdrawalService.ReviewWithdrawal(c.Request.Context(), service.ReviewWithdrawalInput{
		ID:      id,
		AdminID: adminID,
		Action:  req.Action,
		Reason:  req.Reason,
	})
	if err != nil {
		respondWithMappedError(c, err, "Failed to review withdrawal")
		return
	}
	shared.RequestLog(c).Infow("admin_withdrawal_reviewed",
		"withdrawal_id", withdrawal.ID,
		"admin_id", adminID,
		"status", withdrawal.Status,
	)
	response.OK(c, gin.H{"request": withdrawal})
}

// parseTimeNullable 解析 RFC3339 或 2006-01-02；纯日期作为截止时取当天结束
func parseTimeNullable(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed, nil
}

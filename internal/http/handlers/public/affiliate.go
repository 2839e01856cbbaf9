package public

import (
	"strings"

	"github.com/NishadApi25/final-year-project/internal/http/handlers/shared"
	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/models"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TrackClickRequest 推广点击记录请求
type TrackClickRequest struct {
	ProductID       shared.ID `json:"productId"`
	AffiliateUserID shared.ID `json:"affiliateUserId"`
}

// TrackClick 记录推广点击
func (h *Handler) TrackClick(c *gin.Context) {
	var req TrackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Missing productId or affiliateUserId")
		return
	}
	click, err := h.ClickService.RecordClick(service.RecordClickInput{
		ProductID:       req.ProductID.Uint(),
		AffiliateUserID: req.AffiliateUserID.Uint(),
		IPAddress:       shared.ClientIP(c),
	})
	if err != nil {
		respondWithMappedError(c, err, "Failed to record click")
		return
	}
	response.Created(c, gin.H{"clickId": click.ID})
}

// ListClicks 查询推广点击
func (h *Handler) ListClicks(c *gin.Context) {
	productID, ok := queryUint(c, "productId")
	if !ok {
		response.BadRequest(c, "Invalid productId")
		return
	}
	affiliateUserID, ok := queryUint(c, "affiliateUserId")
	if !ok {
		response.BadRequest(c, "Invalid affiliateUserId")
		return
	}
	clicks, err := h.ClickService.ListClicks(service.ClickFilter{ProductID: productID, AffiliateUserID: affiliateUserID})
	if err != nil {
		respondError(c, response.CodeInternal, "Failed to fetch clicks", err)
		return
	}
	response.OK(c, gin.H{"clicks": clicks})
}

// RecordEarningRequest 手动结算请求
type RecordEarningRequest struct {
	OrderID         shared.ID `json:"orderId"`
	AffiliateUserID shared.ID `json:"affiliateUserId"`
}

// RecordEarning 将订单结算为推广佣金
func (h *Handler) RecordEarning(c *gin.Context) {
	var req RecordEarningRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == 0 || req.AffiliateUserID == 0 {
		response.BadRequest(c, "Missing orderId or affiliateUserId")
		return
	}
	earnings, err := h.SettlementService.SettleOrder(c.Request.Context(), req.OrderID.Uint(), req.AffiliateUserID.Uint())
	if err != nil {
		respondWithMappedError(c, err, "Failed to record earnings")
		return
	}
	response.Created(c, gin.H{"earnings": earnings})
}

// ListEarnings 查询佣金记录与汇总
func (h *Handler) ListEarnings(c *gin.Context) {
	affiliateUserID, ok := queryUint(c, "affiliateUserId")
	if !ok {
		response.BadRequest(c, "Invalid affiliateUserId")
		return
	}
	result, err := h.EarningService.ListEarnings(service.EarningFilter{
		AffiliateUserID: affiliateUserID,
		Status:          strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "Failed to fetch earnings", err)
		return
	}
	response.OK(c, gin.H{
		"earnings":      result.Earnings,
		"totalEarnings": result.TotalEarnings,
		"count":         result.Count,
		"uniqueOrders":  result.UniqueOrders,
	})
}

// WithdrawRequest 提现申请请求
type WithdrawRequest struct {
	AffiliateUserID shared.ID       `json:"affiliateUserId"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDetails  models.JSON     `json:"paymentDetails"`
}

// RequestWithdrawal 创建提现申请
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request")
		return
	}
	if req.AffiliateUserID == 0 {
		response.BadRequest(c, "Invalid request")
		return
	}
	withdrawal, err := h.WithdrawalService.RequestWithdrawal(c.Request.Context(), service.RequestWithdrawalInput{
		AffiliateUserID: req.AffiliateUserID.Uint(),
		Amount:          req.Amount,
		PaymentDetails:  req.PaymentDetails,
	})
	if err != nil {
		respondWithMappedError(c, err, "Failed to create withdraw request")
		return
	}
	response.Created(c, gin.H{"request": withdrawal})
}

// ListWithdrawals 查询提现记录与汇总
func (h *Handler) ListWithdrawals(c *gin.Context) {
	affiliateUserID, ok := h.requireAffiliateQuery(c)
	if !ok {
		return
	}
	result, err := h.WithdrawalService.ListWithdrawals(affiliateUserID)
	if err != nil {
		respondError(c, response.CodeInternal, "Failed to fetch withdraws", err)
		return
	}
	response.OK(c, gin.H{
		"records":        result.Records,
		"totalWithdrawn": result.TotalWithdrawn,
		"pendingTotal":   result.PendingTotal,
	})
}

// GetBalance 查询可提现余额
func (h *Handler) GetBalance(c *gin.Context) {
	affiliateUserID, ok := h.requireAffiliateQuery(c)
	if !ok {
		return
	}
	balance, err := h.WithdrawalService.Balance(affiliateUserID)
	if err != nil {
		respondError(c, response.CodeInternal, "Failed to fetch balance", err)
		return
	}
	response.OK(c, gin.H{"balance": balance})
}

// GenerateLinkRequest 推广链接生成请求
type GenerateLinkRequest struct {
	ProductID shared.ID `json:"productId"`
	Slug      string    `json:"slug"`
	UserID    shared.ID `json:"userId"`
}

// GenerateLink 生成商品推广链接
func (h *Handler) GenerateLink(c *gin.Context) {
	var req GenerateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Missing parameters")
		return
	}
	link, err := h.AffiliateLinkService.GenerateLink(service.GenerateLinkInput{
		UserID:    req.UserID.Uint(),
		ProductID: req.ProductID.Uint(),
		Slug:      req.Slug,
	})
	if err != nil {
		respondWithMappedError(c, err, "Failed to generate link")
		return
	}
	response.OK(c, gin.H{"link": link})
}

// GetOverview 推广看板
func (h *Handler) GetOverview(c *gin.Context) {
	affiliateUserID, ok := h.requireAffiliateQuery(c)
	if !ok {
		return
	}
	refresh := c.Query("refresh") == "1" || strings.EqualFold(c.Query("refresh"), "true")
	overview, err := h.DashboardService.Overview(c.Request.Context(), affiliateUserID, refresh)
	if err != nil {
		respondWithMappedError(c, err, "Failed to load overview")
		return
	}
	response.OK(c, gin.H{"overview": overview})
}

func (h *Handler) requireAffiliateQuery(c *gin.Context) (uint, bool) {
	affiliateUserID := shared.ParseUint(c.Query("affiliateUserId"))
	if affiliateUserID == 0 {
		response.BadRequest(c, "Missing affiliateUserId")
		return 0, false
	}
	return affiliateUserID, true
}

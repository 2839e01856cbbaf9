package public

import (
	"github.com/NishadApi25/final-year-project/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ListProductClicks 已上架商品的近 7 天与近 30 天点击序列
func (h *Handler) ListProductClicks(c *gin.Context) {
	affiliateUserID, ok := queryUint(c, "affiliateUserId")
	if !ok {
		response.BadRequest(c, "Invalid affiliateUserId")
		return
	}
	series, err := h.DashboardService.ProductClickSeries(affiliateUserID)
	if err != nil {
		respondError(c, response.CodeInternal, "Failed to fetch products", err)
		return
	}
	response.OK(c, gin.H{"products": series})
}

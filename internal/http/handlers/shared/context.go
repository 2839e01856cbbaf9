package shared

import (
	"strconv"
	"strings"

	"github.com/NishadApi25/final-year-project/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetContextUint 从上下文读取 uint 值，缺失时返回 401。
func GetContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, "Unauthorized")
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			response.BadRequest(c, "Invalid "+key)
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			response.BadRequest(c, "Invalid "+key)
			return 0, false
		}
		return uint(v), true
	default:
		RespondError(c, response.CodeInternal, "Internal server error", nil)
		return 0, false
	}
}

// ParseUint 解析 uint 参数，空串或非法返回 0。
func ParseUint(raw string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// ParseIDParam 解析路径 ID 参数。
func ParseIDParam(c *gin.Context, name string) (uint, bool) {
	id := ParseUint(c.Param(name))
	if id == 0 {
		response.BadRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// ClientIP 依次取 X-Forwarded-For 首跳、X-Real-IP，缺失时返回 unknown。
func ClientIP(c *gin.Context) string {
	if forwarded := strings.TrimSpace(c.GetHeader("X-Forwarded-For")); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		return realIP
	}
	return "unknown"
}

// ParsePagination 读取 page/page_size 查询参数并归一化，page_size 上限 100。
func ParsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = 20
	case pageSize > 100:
		pageSize = 100
	}
	return page, pageSize
}

package public

import (
	"github.com/NishadApi25/final-year-project/internal/http/handlers/shared"
	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/provider"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 前台/公开接口处理器入口
// 说明：推广、商品统计与支付回调接口。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return shared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	shared.RespondError(c, code, msg, err)
}

func respondWithMappedError(c *gin.Context, err error, fallbackMsg string) {
	shared.RespondMappedError(c, err, shared.CommonErrorRules, response.CodeInternal, fallbackMsg)
}

func queryUint(c *gin.Context, key string) (uint, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	id := shared.ParseUint(raw)
	return id, id != 0
}

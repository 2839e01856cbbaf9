package admin

import (
	"github.com/NishadApi25/final-year-project/internal/http/handlers/shared"
	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/provider"

	"github.com/gin-gonic/gin"
)

// Handler 后台管理接口处理器入口
// 说明：该处理器仅用于管理端 API。
type Handler struct {
	*provider.Container
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func respondError(c *gin.Context, code int, msg string, err error) {
	shared.RespondError(c, code, msg, err)
}

func respondWithMappedError(c *gin.Context, err error, fallbackMsg string) {
	shared.RespondMappedError(c, err, shared.CommonErrorRules, response.CodeInternal, fallbackMsg)
}

func getAdminID(c *gin.Context) (uint, bool) {
	return shared.GetContextUint(c, "admin_id")
}

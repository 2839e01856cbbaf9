package admin

import (
	"errors"
	"time"

	"github.com/NishadApi25/final-year-project/internal/constants"
	"github.com/NishadApi25/final-year-project/internal/http/handlers/shared"
	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/gin-gonic/gin"
)

// LoginRequest 登录请求
type LoginRequest struct {
	Username       string                       `json:"username" binding:"required"`
	Password       string                       `json:"password" binding:"required"`
	CaptchaPayload shared.CaptchaPayloadRequest `json:"captchaPayload"`
}

// AdminLogin 管理员登录
func (h *Handler) AdminLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Username and password are required")
		return
	}
	if err := h.CaptchaService.Verify(constants.CaptchaSceneAdminLogin, req.CaptchaPayload.ToServicePayload()); err != nil {
		respondWithMappedError(c, err, "Captcha verification failed")
		return
	}

	admin, token, expiresAt, err := h.AuthService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, "Invalid username or password")
			return
		}
		respondError(c, response.CodeInternal, "Login failed", err)
		return
	}
	response.OK(c, gin.H{
		"token": token,
		"user": gin.H{
			"id":       admin.ID,
			"username": admin.Username,
			"role":     admin.Role,
		},
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
}

// GetAdminMe 当前登录管理员
func (h *Handler) GetAdminMe(c *gin.Context) {
	id, ok := getAdminID(c)
	if !ok {
		return
	}
	admin, err := h.AuthService.GetAdmin(id)
	if err != nil {
		respondError(c, response.CodeInternal, "Failed to fetch admin", err)
		return
	}
	if admin == nil {
		response.NotFound(c, "Admin not found")
		return
	}
	roles := []string{}
	if h.AuthzService != nil {
		if assigned, err := h.AuthzService.GetAdminRoles(admin.ID); err == nil {
			roles = assigned
		}
	}
	response.OK(c, gin.H{"admin": admin, "roles": roles})
}

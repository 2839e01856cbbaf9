package public

import (
	"errors"

	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/gin-gonic/gin"
)

// GetImageCaptcha 获取图片验证码挑战
func (h *Handler) GetImageCaptcha(c *gin.Context) {
	challenge, err := h.CaptchaService.GenerateImageChallenge()
	if err != nil {
		if errors.Is(err, service.ErrCaptchaConfigInvalid) {
			response.Error(c, response.CodeBadRequest, "Captcha is not enabled")
			return
		}
		respondError(c, response.CodeInternal, "Failed to generate captcha", err)
		return
	}
	response.OK(c, gin.H{
		"captchaId":   challenge.CaptchaID,
		"imageBase64": challenge.ImageBase64,
		"expiresIn":   h.Config.Captcha.Image.ExpireSeconds,
	})
}

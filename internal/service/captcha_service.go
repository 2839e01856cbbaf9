package service

import (
	"strings"
	"time"

	"github.com/NishadApi25/final-year-project/internal/config"
	"github.com/NishadApi25/final-year-project/internal/constants"

	"github.com/mojocn/base64Captcha"
)

const captchaSource = "23456789abcdefghjkmnpqrstuvwxyz"

// CaptchaVerifyPayload 验证码校验载荷
type CaptchaVerifyPayload struct {
	CaptchaID   string
	CaptchaCode string
}

// CaptchaImageChallenge 图片验证码挑战
type CaptchaImageChallenge struct {
	CaptchaID   string `json:"captchaId"`
	ImageBase64 string `json:"imageBase64"`
}

// CaptchaService 图片验证码服务
// 按场景开关决定是否校验，答案一次性消费
type CaptchaService struct {
	cfg    config.CaptchaConfig
	store  base64Captcha.Store
	driver base64Captcha.Driver
}

// NewCaptchaService 创建验证码服务；store 为空时使用进程内存储
func NewCaptchaService(cfg config.CaptchaConfig, store base64Captcha.Store) *CaptchaService {
	cfg = normalizeCaptchaConfig(cfg)
	s := &CaptchaService{cfg: cfg}
	if cfg.Provider != constants.CaptchaProviderImage {
		return s
	}
	if store == nil {
		store = base64Captcha.NewMemoryStore(cfg.Image.MaxStore, time.Duration(cfg.Image.ExpireSeconds)*time.Second)
	}
	s.store = store
	s.driver = base64Captcha.NewDriverString(
		cfg.Image.Height,
		cfg.Image.Width,
		cfg.Image.NoiseCount,
		cfg.Image.ShowLine,
		cfg.Image.Length,
		captchaSource,
		nil,
		base64Captcha.DefaultEmbeddedFonts,
		nil,
	)
	return s
}

func normalizeCaptchaConfig(cfg config.CaptchaConfig) config.CaptchaConfig {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = constants.CaptchaProviderNone
	}
	img := &cfg.Image
	if img.Length < 4 || img.Length > 8 {
		img.Length = 5
	}
	if img.Width <= 0 {
		img.Width = 240
	}
	if img.Height <= 0 {
		img.Height = 80
	}
	if img.NoiseCount < 0 {
		img.NoiseCount = 0
	}
	if img.ExpireSeconds <= 0 {
		img.ExpireSeconds = 300
	}
	if img.MaxStore <= 0 {
		img.MaxStore = 10240
	}
	return cfg
}

// SceneEnabled 场景是否需要验证码
func (s *CaptchaService) SceneEnabled(scene string) bool {
	if s == nil || s.cfg.Provider == constants.CaptchaProviderNone {
		return false
	}
	switch scene {
	case constants.CaptchaSceneAdminLogin:
		return s.cfg.Scenes.AdminLogin
	case constants.CaptchaSceneBkashSendOTP:
		return s.cfg.Scenes.BkashSendOTP
	default:
		return false
	}
}

// GenerateImageChallenge 生成图片验证码
func (s *CaptchaService) GenerateImageChallenge() (*CaptchaImageChallenge, error) {
	if s == nil || s.driver == nil {
		return nil, ErrCaptchaConfigInvalid
	}
	id, b64s, _, err := base64Captcha.NewCaptcha(s.driver, s.store).Generate()
	if err != nil {
		return nil, err
	}
	return &CaptchaImageChallenge{
		CaptchaID:   strings.TrimSpace(id),
		ImageBase64: strings.TrimSpace(b64s),
	}, nil
}

// Verify 按场景校验验证码，未开启的场景直接放行
func (s *CaptchaService) Verify(scene string, payload CaptchaVerifyPayload) error {
	if !s.SceneEnabled(scene) {
		return nil
	}
	if s.store == nil {
		return ErrCaptchaConfigInvalid
	}
	captchaID := strings.TrimSpace(payload.CaptchaID)
	captchaCode := strings.ToLower(strings.TrimSpace(payload.CaptchaCode))
	if captchaID == "" || captchaCode == "" {
		return ErrCaptchaRequired
	}
	if !s.store.Verify(captchaID, captchaCode, true) {
		return ErrCaptchaInvalid
	}
	return nil
}

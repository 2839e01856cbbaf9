package router

import (
	"fmt"
	"strings"

	"github.com/NishadApi25/final-year-project/internal/cache"
	"github.com/NishadApi25/final-year-project/internal/config"
	adminhandlers "github.com/NishadApi25/final-year-project/internal/http/handlers/admin"
	publichandlers "github.com/NishadApi25/final-year-project/internal/http/handlers/public"
	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/logger"
	"github.com/NishadApi25/final-year-project/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "aff"
	}
	redisClient := cache.Client()
	otpRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:bkash_otp", redisPrefix),
		WindowSeconds: cfg.Security.OTPRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.OTPRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.OTPRateLimit.BlockSeconds,
		Message:       "Too many OTP requests",
	}
	adminLoginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.LoginRateLimit.BlockSeconds,
		Message:       "Too many login attempts",
	}
	otpLimiter := RateLimitMiddleware(redisClient, otpRule, KeyByIPAndJSONField("customerPhone"))

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))
	r.Use(MetricsMiddleware(c.Metrics))

	r.GET("/health", func(ctx *gin.Context) {
		response.OK(ctx, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		path := strings.TrimSpace(cfg.Metrics.Path)
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	{
		affiliate := api.Group("/affiliate")
		{
			affiliate.POST("/track-click", publicHandler.TrackClick)
			affiliate.GET("/track-click", publicHandler.ListClicks)
			affiliate.POST("/record-earning", publicHandler.RecordEarning)
			affiliate.GET("/record-earning", publicHandler.ListEarnings)
			affiliate.POST("/withdraw", publicHandler.RequestWithdrawal)
			affiliate.GET("/withdraw", publicHandler.ListWithdrawals)
			affiliate.GET("/balance", publicHandler.GetBalance)
			affiliate.POST("/generate-link", publicHandler.GenerateLink)
			affiliate.GET("/overview", publicHandler.GetOverview)
		}

		api.GET("/products/clicks", publicHandler.ListProductClicks)
		api.GET("/captcha/image", publicHandler.GetImageCaptcha)

		bkash := api.Group("/bkash")
		{
			bkash.POST("/create-payment", publicHandler.CreateBkashPayment)
			bkash.POST("/send-otp", otpLimiter, publicHandler.SendBkashOTP)
			bkash.POST("/verify-otp", otpLimiter, publicHandler.VerifyBkashOTP)
			bkash.GET("/callback", publicHandler.BkashCallback)
		}

		stripe := api.Group("/stripe")
		{
			stripe.POST("/webhook", publicHandler.StripeWebhook)
			stripe.POST("/confirm", publicHandler.ConfirmStripePayment)
		}

		api.POST("/admin/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIPAndJSONField("username")), adminHandler.AdminLogin)

		// 后台接口（需鉴权 + RBAC）
		admin := api.Group("/admin")
		admin.Use(JWTAuthMiddleware(c.AuthService, c.AdminRepo), AdminRBACMiddleware(c.AuthzService))
		{
			admin.GET("/me", adminHandler.GetAdminMe)
			admin.GET("/affiliate/withdrawals", adminHandler.ListWithdrawals)
			admin.PATCH("/affiliate/withdrawals/:id", adminHandler.ReviewWithdrawal)
			admin.POST("/bkash/refund", adminHandler.RefundBkashPayment)
		}
	}

	return r
}

package router

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/NishadApi25/final-year-project/internal/authz"
	"github.com/NishadApi25/final-year-project/internal/cache"
	"github.com/NishadApi25/final-year-project/internal/config"
	"github.com/NishadApi25/final-year-project/internal/http/handlers/shared"
	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/logger"
	"github.com/NishadApi25/final-year-project/internal/metrics"
	"github.com/NishadApi25/final-year-project/internal/repository"
	"github.com/NishadApi25/final-year-project/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"

const (
	adminIDContextKey      = "admin_id"
	adminRoleContextKey    = "admin_role"
	adminIsSuperContextKey = "admin_is_super"
)

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{"Content-Type", "Authorization", requestIDHeader, "Stripe-Signature"}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		header := c.Writer.Header()
		if allowedOrigin := resolveAllowedOrigin(c.GetHeader("Origin"), allowedOrigins, cfg.AllowCredentials); allowedOrigin != "" {
			header.Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				header.Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			header.Set("Access-Control-Allow-Credentials", "true")
		}
		header.Set("Access-Control-Allow-Headers", headersHeader)
		header.Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			header.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// resolveAllowedOrigin 通配且允许携带凭证时回显请求来源
func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	for _, allowed := range allowedOrigins {
		if allowed != "*" {
			continue
		}
		if allowCredentials && origin != "" {
			return origin
		}
		return "*"
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件，同时写入请求 context 供服务层日志使用
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.L()
	}
	sugar := log.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", shared.ClientIP(c),
		)
		if len(c.Errors) > 0 {
			fields.Errorw("request", "errors", c.Errors.String())
			return
		}
		fields.Infow("request")
	}
}

// MetricsMiddleware 记录请求计数与耗时，按路由模板聚合
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// JWTAuthMiddleware 管理端 JWT 鉴权中间件
func JWTAuthMiddleware(authService *service.AuthService, adminRepo repository.AdminRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authService == nil || adminRepo == nil {
			response.Unauthorized(c, "Unauthorized")
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "Missing Authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			response.Unauthorized(c, "Invalid Authorization header")
			return
		}

		claims, err := authService.ParseJWT(strings.TrimSpace(parts[1]))
		if err != nil || claims.AdminID == 0 {
			response.Unauthorized(c, "Invalid or expired token")
			return
		}
		state, err := loadAdminAuthState(c.Request.Context(), adminRepo, claims.AdminID)
		if err != nil || state == nil {
			response.Unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(adminIDContextKey, state.AdminID)
		c.Set("username", state.Username)
		c.Set(adminRoleContextKey, state.Role)
		c.Set(adminIsSuperContextKey, state.IsSuper)
		c.Next()
	}
}

// loadAdminAuthState 优先读取缓存快照，未命中时回源数据库
func loadAdminAuthState(ctx context.Context, adminRepo repository.AdminRepository, adminID uint) (*cache.AdminAuthState, error) {
	state, hit, err := cache.GetAdminAuthState(ctx, adminID)
	if err != nil {
		logger.Warnw("admin_auth_state_cache_get_failed", "admin_id", adminID, "error", err)
	}
	if hit && state != nil {
		return state, nil
	}
	admin, err := adminRepo.GetByID(adminID)
	if err != nil || admin == nil {
		return nil, err
	}
	state = cache.BuildAdminAuthState(admin)
	if err := cache.SetAdminAuthState(ctx, state); err != nil {
		logger.Warnw("admin_auth_state_cache_set_failed", "admin_id", adminID, "error", err)
	}
	return state, nil
}

// AdminRBACMiddleware 管理端 RBAC 鉴权中间件
func AdminRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authzService == nil {
			logger.Errorw("admin_rbac_service_unavailable")
			response.Unauthorized(c, "Unauthorized")
			return
		}
		if c.GetBool(adminIsSuperContextKey) {
			c.Next()
			return
		}

		adminID, ok := shared.GetContextUint(c, adminIDContextKey)
		if !ok {
			return
		}
		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := authzService.EnforceAdmin(adminID, c.GetString(adminRoleContextKey), resource, c.Request.Method)
		if err != nil {
			logger.Errorw("admin_rbac_enforce_failed",
				"admin_id", adminID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			response.Unauthorized(c, "Unauthorized")
			return
		}
		if !allowed {
			logger.Warnw("admin_rbac_permission_denied",
				"admin_id", adminID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"resource", authz.NormalizeObject(resource),
			)
			response.Forbidden(c, "Forbidden")
			return
		}
		c.Next()
	}
}

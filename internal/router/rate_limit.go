package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/NishadApi25/final-year-project/internal/http/handlers/shared"
	"github.com/NishadApi25/final-year-project/internal/http/response"
	"github.com/NishadApi25/final-year-project/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 限流规则
// 窗口内超过 MaxRequests 次后拒绝，BlockSeconds > 0 时封禁时长延长为该值
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
	BlockSeconds  int
	Message       string
}

// rateLimiter 计数后端，返回窗口内计数与剩余秒数
type rateLimiter interface {
	Hit(ctx context.Context, key string, rule RateLimitRule) (int64, int64, error)
}

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
if current == tonumber(ARGV[2]) + 1 and tonumber(ARGV[3]) > 0 then
	redis.call("EXPIRE", KEYS[1], ARGV[3])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

type redisRateLimiter struct {
	client *redis.Client
}

func (l *redisRateLimiter) Hit(ctx context.Context, key string, rule RateLimitRule) (int64, int64, error) {
	result, err := rateLimitScript.Run(ctx, l.client, []string{key}, rule.WindowSeconds, rule.MaxRequests, rule.BlockSeconds).Result()
	if err != nil {
		return 0, 0, err
	}
	values, ok := result.([]interface{})
	if !ok || len(values) < 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit result %v", result)
	}
	count, ok := toInt64(values[0])
	if !ok {
		return 0, 0, fmt.Errorf("unexpected rate limit count %v", values[0])
	}
	ttl, _ := toInt64(values[1])
	return count, ttl, nil
}

type memoryWindow struct {
	count     int64
	expiresAt time.Time
}

// memoryRateLimiter 单进程限流，未启用 Redis 时使用
type memoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

func newMemoryRateLimiter() *memoryRateLimiter {
	return &memoryRateLimiter{windows: make(map[string]*memoryWindow), now: time.Now}
}

func (l *memoryRateLimiter) Hit(_ context.Context, key string, rule RateLimitRule) (int64, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	window, ok := l.windows[key]
	if !ok || !now.Before(window.expiresAt) {
		window = &memoryWindow{expiresAt: now.Add(time.Duration(rule.WindowSeconds) * time.Second)}
		l.windows[key] = window
	}
	window.count++
	if window.count == int64(rule.MaxRequests)+1 && rule.BlockSeconds > 0 {
		window.expiresAt = now.Add(time.Duration(rule.BlockSeconds) * time.Second)
	}
	if len(l.windows) > 10000 {
		for k, w := range l.windows {
			if !now.Before(w.expiresAt) {
				delete(l.windows, k)
			}
		}
	}
	return window.count, int64(window.expiresAt.Sub(now).Seconds()), nil
}

// RateLimitMiddleware 频率限制中间件，client 为空时退回进程内计数
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	var limiter rateLimiter
	if client != nil {
		limiter = &redisRateLimiter{client: client}
	} else {
		limiter = newMemoryRateLimiter()
	}
	return rateLimitWith(limiter, rule, keyFunc)
}

func rateLimitWith(limiter rateLimiter, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = shared.ClientIP(c)
		}
		if rule.Prefix != "" {
			key = fmt.Sprintf("%s:%s", rule.Prefix, key)
		}

		count, ttlSeconds, err := limiter.Hit(c.Request.Context(), key, rule)
		if err != nil {
			logger.Warnw("rate_limit_unavailable", "key", key, "error", err)
			response.Error(c, response.CodeInternal, "Rate limiter unavailable")
			return
		}
		if count > int64(rule.MaxRequests) {
			waitSeconds := int(ttlSeconds)
			if waitSeconds < 1 {
				waitSeconds = rule.WindowSeconds
			}
			msg := strings.TrimSpace(rule.Message)
			if msg == "" {
				msg = "Too many requests"
			}
			c.Header("Retry-After", fmt.Sprintf("%d", waitSeconds))
			response.Error(c, response.CodeTooManyRequests, fmt.Sprintf("%s, retry in %d seconds", msg, waitSeconds))
			return
		}
		c.Next()
	}
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return shared.ClientIP(c)
}

// KeyByIPAndJSONField 使用 IP + JSON 字段作为限流 key
func KeyByIPAndJSONField(field string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		value := strings.ToLower(strings.TrimSpace(readJSONField(c, field)))
		if value == "" {
			return shared.ClientIP(c)
		}
		return fmt.Sprintf("%s|%s", value, shared.ClientIP(c))
	}
}

func readJSONField(c *gin.Context, field string) string {
	if c == nil || c.Request == nil || c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return ""
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if text, ok := payload[field].(string); ok {
		return strings.TrimSpace(text)
	}
	return ""
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

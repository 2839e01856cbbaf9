package cache

import (
	"context"
	"time"

	"github.com/NishadApi25/final-year-project/internal/logger"
	"github.com/NishadApi25/final-year-project/internal/payment/bkash"
)

const bkashTokenKey = "bkash:token"

// BkashTokenCache 基于 Redis 的 bKash token 缓存，多实例共享同一 token
type BkashTokenCache struct {
	now func() time.Time
}

// NewBkashTokenCache 创建 Redis token 缓存
func NewBkashTokenCache(now func() time.Time) *BkashTokenCache {
	if now == nil {
		now = time.Now
	}
	return &BkashTokenCache{now: now}
}

// Get 读取 token，Redis 异常视为未命中
func (c *BkashTokenCache) Get(ctx context.Context) (bkash.Token, bool) {
	var token bkash.Token
	found, err := GetJSON(ctx, bkashTokenKey, &token)
	if err != nil {
		logger.Warnw("bkash_token_cache_get_failed", "error", err)
		return bkash.Token{}, false
	}
	if !found || !token.Valid(c.now()) {
		return bkash.Token{}, false
	}
	return token, true
}

// Set 写入 token，TTL 与过期时间对齐
func (c *BkashTokenCache) Set(ctx context.Context, token bkash.Token) {
	ttl := token.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return
	}
	if err := SetJSON(ctx, bkashTokenKey, token, ttl); err != nil {
		logger.Warnw("bkash_token_cache_set_failed", "error", err)
	}
}

// Invalidate 删除 token
func (c *BkashTokenCache) Invalidate(ctx context.Context) {
	if err := Del(ctx, bkashTokenKey); err != nil {
		logger.Warnw("bkash_token_cache_invalidate_failed", "error", err)
	}
}

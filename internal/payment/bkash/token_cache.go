package bkash

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Token 网关授权 token。
type Token struct {
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid token 在 now 时刻是否可用。
func (t Token) Valid(now time.Time) bool {
	return strings.TrimSpace(t.IDToken) != "" && now.Before(t.ExpiresAt)
}

// TokenCache token 缓存。
type TokenCache interface {
	Get(ctx context.Context) (Token, bool)
	Set(ctx context.Context, token Token)
	Invalidate(ctx context.Context)
}

// MemoryTokenCache 进程内 token 缓存。
type MemoryTokenCache struct {
	mu    sync.RWMutex
	token Token
	now   func() time.Time
}

// NewMemoryTokenCache 创建进程内缓存，now 为空时使用 time.Now。
func NewMemoryTokenCache(now func() time.Time) *MemoryTokenCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryTokenCache{now: now}
}

// Get 返回未过期的 token。
func (c *MemoryTokenCache) Get(_ context.Context) (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.token.Valid(c.now()) {
		return Token{}, false
	}
	return c.token, true
}

// Set 写入 token。
func (c *MemoryTokenCache) Set(_ context.Context, token Token) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Invalidate 清除 token。
func (c *MemoryTokenCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	c.token = Token{}
	c.mu.Unlock()
}

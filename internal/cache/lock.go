package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy 锁已被其他实例持有
var ErrLockBusy = errors.New("cache lock busy")

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 分布式锁句柄
type Lock struct {
	key   string
	token string
}

// AcquireLock 在 ttl 内重试获取锁；Redis 未启用时返回 nil 锁
func AcquireLock(ctx context.Context, name string, ttl, wait time.Duration) (*Lock, error) {
	if !Enabled() {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	lock := &Lock{key: buildKey("lock:" + name), token: uuid.NewString()}
	deadline := time.Now().Add(wait)
	for {
		ok, err := redisClient.SetNX(ctx, lock.key, lock.token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			return lock, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Release 释放锁，仅删除自己持有的锁
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || !Enabled() {
		return nil
	}
	return releaseLockScript.Run(ctx, redisClient, []string{l.key}, l.token).Err()
}

// WithdrawalLockName 推广用户提现锁名
func WithdrawalLockName(affiliateUserID uint) string {
	return fmt.Sprintf("affiliate:withdraw:%d", affiliateUserID)
}

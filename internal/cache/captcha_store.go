package cache

import (
	"context"
	"errors"
	"time"

	"github.com/NishadApi25/final-year-project/internal/logger"

	"github.com/redis/go-redis/v9"
)

// CaptchaStore 基于 Redis 的图片验证码存储，多实例共享挑战
type CaptchaStore struct {
	ttl time.Duration
}

// NewCaptchaStore 创建验证码存储
func NewCaptchaStore(ttl time.Duration) *CaptchaStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CaptchaStore{ttl: ttl}
}

func captchaKey(id string) string {
	return buildKey("captcha:" + id)
}

// Set 写入验证码答案
func (s *CaptchaStore) Set(id string, value string) error {
	if !Enabled() {
		return nil
	}
	return redisClient.Set(context.Background(), captchaKey(id), value, s.ttl).Err()
}

// Get 读取答案，clear 为真时读取后删除
func (s *CaptchaStore) Get(id string, clear bool) string {
	if !Enabled() || id == "" {
		return ""
	}
	ctx := context.Background()
	var (
		val string
		err error
	)
	if clear {
		val, err = redisClient.GetDel(ctx, captchaKey(id)).Result()
	} else {
		val, err = redisClient.Get(ctx, captchaKey(id)).Result()
	}
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warnw("captcha_store_get_failed", "error", err)
		}
		return ""
	}
	return val
}

// Verify 校验答案
func (s *CaptchaStore) Verify(id, answer string, clear bool) bool {
	val := s.Get(id, clear)
	return val != "" && val == answer
}

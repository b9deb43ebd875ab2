package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ncecere/voiceclone/internal/config"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

type LimitConfig struct {
	RequestsPerMinute   int
	ParallelRequests    int
	CharactersPerMinute int
}

// FromConfig returns the limits configured for every client.
func FromConfig(cfg config.RateLimitConfig) LimitConfig {
	return LimitConfig{
		RequestsPerMinute:   cfg.RequestsPerMinute,
		ParallelRequests:    cfg.ParallelRequests,
		CharactersPerMinute: cfg.CharactersPerMinute,
	}
}

// RateLimiter enforces per-client limits with counters shared through Redis,
// so several server replicas see the same budget.
type RateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow admits one request for key. A successful Allow with ParallelRequests
// set must be paired with Release.
func (l *RateLimiter) Allow(ctx context.Context, key string, cfg LimitConfig) error {
	if l == nil || l.client == nil {
		return nil
	}
	if cfg.RequestsPerMinute > 0 {
		if err := l.countCheck(ctx, "rpm:"+key, time.Minute, cfg.RequestsPerMinute); err != nil {
			return err
		}
	}
	if cfg.ParallelRequests > 0 {
		if err := l.semaphoreAcquire(ctx, "sem:"+key, cfg.ParallelRequests); err != nil {
			return err
		}
	}
	return nil
}

func (l *RateLimiter) Release(ctx context.Context, key string, cfg LimitConfig) {
	if l == nil || l.client == nil {
		return
	}
	if cfg.ParallelRequests > 0 {
		l.semaphoreRelease(ctx, "sem:"+key)
	}
}

// CharacterAllowance charges chars of input text against the per-minute
// budget. A rejected charge is rolled back.
func (l *RateLimiter) CharacterAllowance(ctx context.Context, key string, chars int, cfg LimitConfig) error {
	if l == nil || l.client == nil || cfg.CharactersPerMinute <= 0 {
		return nil
	}
	redisKey := l.windowKey("cpm:"+key, time.Minute)

	used, err := l.client.IncrBy(ctx, redisKey, int64(chars)).Result()
	if err != nil {
		return err
	}
	if used == int64(chars) {
		l.client.Expire(ctx, redisKey, time.Minute)
	}
	if int(used) > cfg.CharactersPerMinute {
		l.client.IncrBy(ctx, redisKey, -int64(chars))
		return ErrLimitExceeded
	}
	return nil
}

func (l *RateLimiter) countCheck(ctx context.Context, key string, ttl time.Duration, limit int) error {
	redisKey := l.windowKey(key, ttl)

	cnt, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return err
	}
	if cnt == 1 {
		l.client.Expire(ctx, redisKey, ttl)
	}
	if int(cnt) > limit {
		return ErrLimitExceeded
	}
	return nil
}

// semaphoreAcquire slots expire after ttl in case Release never runs.
func (l *RateLimiter) semaphoreAcquire(ctx context.Context, key string, max int) error {
	ttl := 10 * time.Minute
	cnt, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if cnt == 1 {
		l.client.Expire(ctx, key, ttl)
	}
	if int(cnt) > max {
		l.client.Decr(ctx, key)
		return ErrLimitExceeded
	}
	return nil
}

func (l *RateLimiter) semaphoreRelease(ctx context.Context, key string) {
	l.client.Decr(ctx, key)
}

func (l *RateLimiter) windowKey(key string, window time.Duration) string {
	bucket := l.now().UTC().Unix() / int64(window.Seconds())
	return fmt.Sprintf("voiceclone:%s:%d", key, bucket)
}

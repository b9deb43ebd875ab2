package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "voiceclone:audio:"

// AudioCache stores synthesized WAV bytes keyed by request fingerprint.
type AudioCache struct {
	client   *redis.Client
	ttl      time.Duration
	maxBytes int
	logger   *slog.Logger
}

// NewAudioCache returns a cache that skips entries larger than maxMB.
// maxMB <= 0 means no size limit.
func NewAudioCache(client *redis.Client, ttl time.Duration, maxMB int, logger *slog.Logger) *AudioCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioCache{client: client, ttl: ttl, maxBytes: maxMB * 1024 * 1024, logger: logger}
}

func (c *AudioCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil || key == "" {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.prefixed(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("audio cache get failed", slog.Any("error", err))
		}
		return nil, false
	}
	return data, true
}

func (c *AudioCache) Set(ctx context.Context, key string, value []byte) {
	if c == nil || c.client == nil || key == "" || len(value) == 0 {
		return
	}
	if c.maxBytes > 0 && len(value) > c.maxBytes {
		return
	}
	if err := c.client.Set(ctx, c.prefixed(key), value, c.ttl).Err(); err != nil {
		c.logger.Warn("audio cache set failed", slog.Any("error", err))
	}
}

func (c *AudioCache) prefixed(key string) string {
	return keyPrefix + key
}

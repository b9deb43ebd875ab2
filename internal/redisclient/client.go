package redisclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ncecere/voiceclone/internal/config"
)

// New builds a client from cfg.URL. Values that are not redis:// URLs are
// treated as a bare host:port or unix socket path.
func New(cfg config.RedisConfig) *redis.Client {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		opts = &redis.Options{Addr: cfg.URL}
		if strings.HasPrefix(cfg.URL, "/") {
			opts.Network = "unix"
		}
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)
	client.AddHook(skipMaintNotifications{})
	return client
}

// Ping verifies connectivity with a short timeout and reports the round trip.
func Ping(ctx context.Context, client *redis.Client) (time.Duration, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	if err := client.Ping(timeoutCtx).Err(); err != nil {
		return 0, fmt.Errorf("ping redis: %w", err)
	}
	return time.Since(start), nil
}

// skipMaintNotifications drops the CLIENT MAINT_NOTIFICATIONS handshake that
// go-redis sends on connect; older servers and miniredis reject it.
type skipMaintNotifications struct{}

func isMaintNotifications(cmd redis.Cmder) bool {
	args := cmd.Args()
	if !strings.EqualFold(cmd.FullName(), "client") || len(args) < 2 {
		return false
	}
	name, ok := args[1].(string)
	return ok && strings.EqualFold(name, "maint_notifications")
}

func (skipMaintNotifications) DialHook(next redis.DialHook) redis.DialHook { return next }

func (skipMaintNotifications) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if isMaintNotifications(cmd) {
			return nil
		}
		return next(ctx, cmd)
	}
}

func (skipMaintNotifications) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		kept := cmds[:0]
		for _, cmd := range cmds {
			if !isMaintNotifications(cmd) {
				kept = append(kept, cmd)
			}
		}
		return next(ctx, kept)
	}
}

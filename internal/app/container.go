package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ncecere/voiceclone/internal/cache"
	"github.com/ncecere/voiceclone/internal/config"
	"github.com/ncecere/voiceclone/internal/history"
	"github.com/ncecere/voiceclone/internal/languages"
	"github.com/ncecere/voiceclone/internal/limits"
	"github.com/ncecere/voiceclone/internal/observability"
	"github.com/ncecere/voiceclone/internal/storage/blob"
	"github.com/ncecere/voiceclone/internal/synth"
)

// Container aggregates runtime dependencies for handlers and commands.
// DBPool, Redis, Cache, RateLimiter, Archive and History are nil when the
// corresponding feature is disabled.
type Container struct {
	Config        *config.Config
	DBPool        *pgxpool.Pool
	Redis         *redis.Client
	Synth         *synth.Service
	Cache         *cache.AudioCache
	RateLimiter   *limits.RateLimiter
	DefaultLimit  limits.LimitConfig
	Archive       *blob.Archive
	History       *history.Store
	Observability *observability.Provider
	Logger        *slog.Logger
}

// Deps carries externally owned resources. Engine overrides the engine
// selected by cfg.Engine.Kind.
type Deps struct {
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Engine synth.Engine
	Logger *slog.Logger
}

// NewContainer wires the synthesis service and its optional collaborators.
// The engine is built but not warmed; call Synth.Warm before serving.
func NewContainer(ctx context.Context, cfg *config.Config, deps Deps) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Container{
		Config:       cfg,
		DBPool:       deps.Pool,
		Redis:        deps.Redis,
		DefaultLimit: limits.FromConfig(cfg.RateLimits),
		Logger:       logger,
	}

	obs, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}
	c.Observability = obs

	if cfg.Cache.Enabled {
		if deps.Redis == nil {
			return nil, fmt.Errorf("cache enabled but redis client is nil")
		}
		c.Cache = cache.NewAudioCache(deps.Redis, cfg.Cache.TTL, cfg.Cache.MaxMB, logger)
	}
	if cfg.RateLimits.Enabled {
		if deps.Redis == nil {
			return nil, fmt.Errorf("rate limits enabled but redis client is nil")
		}
		c.RateLimiter = limits.NewRateLimiter(deps.Redis)
	}
	if cfg.Storage.Enabled {
		store, err := blob.New(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		c.Archive = blob.NewArchive(store)
	}
	if cfg.Database.Enabled {
		if deps.Pool == nil {
			return nil, fmt.Errorf("database enabled but pool is nil")
		}
		c.History = history.NewStore(deps.Pool)
	}

	engine := deps.Engine
	if engine == nil {
		engine, err = synth.NewEngine(cfg.Engine)
		if err != nil {
			return nil, err
		}
	}

	opts := synth.ServiceOptions{
		DefaultLanguage: languages.Code(cfg.Languages.Default),
		ModelAlias:      cfg.Engine.ModelAlias,
		Timeout:         cfg.Engine.Timeout,
		MaxConcurrency:  cfg.Engine.MaxConcurrency,
		Metrics:         obs,
		Logger:          logger,
	}
	// Typed nils must not leak into the interfaces.
	if c.Cache != nil {
		opts.Cache = c.Cache
	}
	if c.Archive != nil {
		opts.Archive = c.Archive
	}
	if c.History != nil {
		opts.History = c.History
	}
	c.Synth = synth.NewService(engine, opts)
	return c, nil
}

// Close releases resources the container created itself.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.Observability.Shutdown(ctx)
}

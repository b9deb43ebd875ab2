package app

import (
	"context"
	"strconv"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/voiceclone/internal/config"
	"github.com/ncecere/voiceclone/internal/limits"
	"github.com/ncecere/voiceclone/internal/synth"
)

type nopEngine struct{}

func (nopEngine) Name() string { return "nop" }

func (nopEngine) Model() string { return config.DefaultModelName }

func (nopEngine) Warm(context.Context) error { return nil }

func (nopEngine) Synthesize(context.Context, synth.EngineRequest) ([]byte, error) {
	return []byte("RIFF"), nil
}

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewContainerMinimal(t *testing.T) {
	cfg := validConfig(t)
	c, err := NewContainer(context.Background(), cfg, Deps{Engine: nopEngine{}})
	require.NoError(t, err)
	require.NotNil(t, c.Synth)
	require.Nil(t, c.Cache)
	require.Nil(t, c.RateLimiter)
	require.Nil(t, c.Archive)
	require.Nil(t, c.History)
	require.Equal(t, config.DefaultModelAlias, c.Synth.ModelAlias())
	require.NoError(t, c.Close(context.Background()))
}

func TestNewContainerBuildsEngineFromConfig(t *testing.T) {
	cfg := validConfig(t)
	c, err := NewContainer(context.Background(), cfg, Deps{})
	require.NoError(t, err)
	require.Equal(t, config.EngineCommand, c.Synth.EngineName())
}

func TestNewContainerRequiresRedisForCache(t *testing.T) {
	cfg := validConfig(t)
	cfg.Cache.Enabled = true
	_, err := NewContainer(context.Background(), cfg, Deps{Engine: nopEngine{}})
	require.Error(t, err)
}

func TestNewContainerWiresOptionalFeatures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := validConfig(t)
	cfg.Cache.Enabled = true
	cfg.RateLimits.Enabled = true
	cfg.Storage.Enabled = true
	cfg.Storage.Local.Directory = t.TempDir()

	c, err := NewContainer(context.Background(), cfg, Deps{Redis: client, Engine: nopEngine{}})
	require.NoError(t, err)
	require.NotNil(t, c.Cache)
	require.NotNil(t, c.RateLimiter)
	require.NotNil(t, c.Archive)
}

func TestAcquireRateLimitsReleasesParallelSlot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := &Container{
		RateLimiter:  limits.NewRateLimiter(client),
		DefaultLimit: limits.LimitConfig{ParallelRequests: 1},
	}
	ctx := context.Background()

	release, err := c.AcquireRateLimits(ctx, "10.0.0.1", 10)
	require.NoError(t, err)

	_, err = c.AcquireRateLimits(ctx, "10.0.0.1", 10)
	require.ErrorIs(t, err, limits.ErrLimitExceeded)

	release()
	releaseAgain, err := c.AcquireRateLimits(ctx, "10.0.0.1", 10)
	require.NoError(t, err)
	releaseAgain()
}

func TestAcquireRateLimitsCharacterBudget(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := &Container{
		RateLimiter:  limits.NewRateLimiter(client),
		DefaultLimit: limits.LimitConfig{CharactersPerMinute: 100},
	}
	_, err := c.AcquireRateLimits(context.Background(), "10.0.0.9", 150)
	require.ErrorIs(t, err, limits.ErrLimitExceeded)
}

func TestAcquireRateLimitsRejectedRequestsKeepCharacterBudget(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := &Container{
		RateLimiter:  limits.NewRateLimiter(client),
		DefaultLimit: limits.LimitConfig{RequestsPerMinute: 1, CharactersPerMinute: 100},
	}
	ctx := context.Background()

	release, err := c.AcquireRateLimits(ctx, "10.0.0.5", 10)
	require.NoError(t, err)
	release()

	for i := 0; i < 5; i++ {
		_, err := c.AcquireRateLimits(ctx, "10.0.0.5", 20)
		require.ErrorIs(t, err, limits.ErrLimitExceeded)
	}

	charged := 0
	for _, key := range mr.Keys() {
		if !strings.HasPrefix(key, "voiceclone:cpm:client:10.0.0.5:") {
			continue
		}
		v, err := mr.Get(key)
		require.NoError(t, err)
		n, err := strconv.Atoi(v)
		require.NoError(t, err)
		charged += n
	}
	require.Equal(t, 10, charged)
}

func TestAcquireRateLimitsCharacterRejectionFreesParallelSlot(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := &Container{
		RateLimiter:  limits.NewRateLimiter(client),
		DefaultLimit: limits.LimitConfig{ParallelRequests: 1, CharactersPerMinute: 100},
	}
	ctx := context.Background()

	_, err := c.AcquireRateLimits(ctx, "10.0.0.6", 150)
	require.ErrorIs(t, err, limits.ErrLimitExceeded)

	release, err := c.AcquireRateLimits(ctx, "10.0.0.6", 10)
	require.NoError(t, err)
	release()
}

func TestAcquireRateLimitsDisabled(t *testing.T) {
	c := &Container{}
	release, err := c.AcquireRateLimits(context.Background(), "x", 1_000_000)
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}

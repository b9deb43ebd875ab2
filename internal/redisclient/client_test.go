package redisclient

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/voiceclone/internal/config"
)

func TestNewAcceptsURLAndBareAddress(t *testing.T) {
	mr := miniredis.RunT(t)

	for _, url := range []string{"redis://" + mr.Addr() + "/0", mr.Addr()} {
		client := New(config.RedisConfig{URL: url, PoolSize: 2})
		_, err := Ping(context.Background(), client)
		require.NoError(t, err, url)
		require.Equal(t, 2, client.Options().PoolSize)
		require.NoError(t, client.Close())
	}
}

func TestPingReportsFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := New(config.RedisConfig{URL: mr.Addr()})
	defer client.Close()
	mr.Close()

	_, err := Ping(context.Background(), client)
	require.ErrorContains(t, err, "ping redis")
}

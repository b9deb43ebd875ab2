package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/voiceclone/internal/app"
	"github.com/ncecere/voiceclone/internal/config"
	"github.com/ncecere/voiceclone/internal/synth"
)

type readyEngine struct{}

func (readyEngine) Name() string { return "command" }

func (readyEngine) Model() string { return config.DefaultModelName }

func (readyEngine) Warm(context.Context) error { return nil }

func (readyEngine) Synthesize(context.Context, synth.EngineRequest) ([]byte, error) {
	return []byte("RIFF"), nil
}

func newTestServer(t *testing.T, mutate func(*config.Config), deps app.Deps) (*Server, *app.Container) {
	t.Helper()
	cfg := &config.Config{}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	deps.Engine = readyEngine{}
	container, err := app.NewContainer(context.Background(), cfg, deps)
	require.NoError(t, err)
	srv, err := New(container)
	require.NoError(t, err)
	return srv, container
}

func getJSON(t *testing.T, srv *Server, path string) (int, map[string]any) {
	t.Helper()
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealthReportsLoadingThenReady(t *testing.T) {
	srv, container := newTestServer(t, nil, app.Deps{})

	status, body := getJSON(t, srv, "/health")
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, "loading", body["status"])

	require.NoError(t, container.Synth.Warm(context.Background()))
	status, body = getJSON(t, srv, "/health")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ready", body["status"])
	require.Equal(t, "xtts_v2", body["model"])
	require.Equal(t, "command", body["engine"])
	require.NotContains(t, body, "checks")
}

func TestHealthIncludesRedisCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	srv, container := newTestServer(t, nil, app.Deps{Redis: client})
	require.NoError(t, container.Synth.Warm(context.Background()))

	status, body := getJSON(t, srv, "/health")
	require.Equal(t, http.StatusOK, status)
	checks := body["checks"].(map[string]any)
	require.Equal(t, "ok", checks["redis"].(map[string]any)["status"])

	mr.Close()
	_, body = getJSON(t, srv, "/health")
	require.Equal(t, "degraded", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, container := newTestServer(t, func(cfg *config.Config) {
		cfg.Observability.EnableMetrics = true
	}, app.Deps{})
	require.NoError(t, container.Synth.Warm(context.Background()))

	_, _ = getJSON(t, srv, "/languages")

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(data), "voiceclone_http_requests_total")
}

func TestNewRequiresContainer(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

package public

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/voiceclone/internal/app"
	"github.com/ncecere/voiceclone/internal/config"
	"github.com/ncecere/voiceclone/internal/synth"
)

type fakeEngine struct {
	calls atomic.Int32
	last  atomic.Value
	err   error
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Model() string { return config.DefaultModelName }

func (e *fakeEngine) Warm(context.Context) error { return nil }

func (e *fakeEngine) Synthesize(_ context.Context, req synth.EngineRequest) ([]byte, error) {
	e.calls.Add(1)
	e.last.Store(req)
	if e.err != nil {
		return nil, e.err
	}
	return []byte("RIFF....WAVEfmt "), nil
}

type fixture struct {
	app    *fiber.App
	engine *fakeEngine
	voice  string
}

func newFixture(t *testing.T, mutate func(*config.Config), deps app.Deps) *fixture {
	t.Helper()
	cfg := &config.Config{}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	engine := &fakeEngine{}
	deps.Engine = engine
	container, err := app.NewContainer(context.Background(), cfg, deps)
	require.NoError(t, err)
	require.NoError(t, container.Synth.Warm(context.Background()))

	fiberApp := fiber.New()
	Register(fiberApp, container)

	voice := filepath.Join(t.TempDir(), "voice.wav")
	require.NoError(t, os.WriteFile(voice, []byte("RIFF-voice"), 0o600))
	return &fixture{app: fiberApp, engine: engine, voice: voice}
}

func (f *fixture) post(t *testing.T, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tts", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestSynthesizeReturnsWAV(t *testing.T) {
	f := newFixture(t, nil, app.Deps{})

	resp := f.post(t, mustJSON(t, map[string]string{"voice": f.voice, "text": "Hello", "language": "es"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	require.Equal(t, "es", resp.Header.Get(HeaderLanguage))
	require.Equal(t, "MISS", resp.Header.Get(HeaderCache))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotEmpty(t, body)
	require.EqualValues(t, 1, f.engine.calls.Load())
}

func TestSynthesizeDefaultsLanguage(t *testing.T) {
	f := newFixture(t, nil, app.Deps{})

	resp := f.post(t, mustJSON(t, map[string]string{"voice": f.voice, "text": "Hello"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "en", resp.Header.Get(HeaderLanguage))

	resp = f.post(t, mustJSON(t, map[string]string{"voice": f.voice, "text": "Hello", "language": "klingon"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "en", resp.Header.Get(HeaderLanguage))
	last := f.engine.last.Load().(synth.EngineRequest)
	require.Equal(t, "en", string(last.Language))
}

func TestSynthesizeBadRequests(t *testing.T) {
	f := newFixture(t, nil, app.Deps{})

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "{not json"},
		{name: "empty body", body: ""},
		{name: "missing voice", body: `{"text":"hi"}`},
		{name: "missing text", body: mustJSON(t, map[string]string{"voice": f.voice})},
		{name: "blank text", body: mustJSON(t, map[string]string{"voice": f.voice, "text": "   "})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.post(t, tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.NotEmpty(t, decodeError(t, resp))
		})
	}
	require.Zero(t, f.engine.calls.Load())
}

func TestSynthesizeVoiceNotFound(t *testing.T) {
	f := newFixture(t, nil, app.Deps{})
	missing := filepath.Join(t.TempDir(), "ghost.wav")

	resp := f.post(t, mustJSON(t, map[string]string{"voice": missing, "text": "Hello"}))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Contains(t, decodeError(t, resp), missing)
	require.Zero(t, f.engine.calls.Load())
}

func TestSynthesizeEngineFailure(t *testing.T) {
	f := newFixture(t, nil, app.Deps{})
	f.engine.err = errors.New("out of memory")

	resp := f.post(t, mustJSON(t, map[string]string{"voice": f.voice, "text": "Hello"}))
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Contains(t, decodeError(t, resp), "out of memory")
}

func TestSynthesizeCacheAndRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, func(cfg *config.Config) {
		cfg.Redis.URL = mr.Addr()
		cfg.Cache.Enabled = true
		cfg.RateLimits.Enabled = true
		cfg.RateLimits.RequestsPerMinute = 2
		cfg.RateLimits.ParallelRequests = 1
	}, app.Deps{Redis: client})
	body := mustJSON(t, map[string]string{"voice": f.voice, "text": "Cache me"})

	first := f.post(t, body)
	require.Equal(t, http.StatusOK, first.StatusCode)
	require.Equal(t, "MISS", first.Header.Get(HeaderCache))

	second := f.post(t, body)
	require.Equal(t, http.StatusOK, second.StatusCode)
	require.Equal(t, "HIT", second.Header.Get(HeaderCache))
	require.EqualValues(t, 1, f.engine.calls.Load())

	third := f.post(t, body)
	require.Equal(t, http.StatusTooManyRequests, third.StatusCode)
	require.Equal(t, "rate limit exceeded", decodeError(t, third))
}

func TestLanguages(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.Languages.Default = "de" }, app.Deps{})

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/languages", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body languagesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "de", string(body.Default))
	require.Len(t, body.Languages, 17)
	require.Equal(t, "en", string(body.Languages[0].Code))
	require.Equal(t, "English", body.Languages[0].Name)
}

func TestOutputsRoute(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Storage.Enabled = true
		cfg.Storage.Local.Directory = dir
	}, app.Deps{})

	resp := f.post(t, mustJSON(t, map[string]string{"voice": f.voice, "text": "Keep me", "language": "it"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get(HeaderOutputID)
	require.NotEmpty(t, id)

	got, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/outputs/"+id, nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, got.StatusCode)
	require.Equal(t, "audio/wav", got.Header.Get("Content-Type"))
	require.Equal(t, "it", got.Header.Get(HeaderLanguage))

	missing, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/outputs/00000000-0000-0000-0000-000000000000", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, missing.StatusCode)

	deleted, err := f.app.Test(httptest.NewRequest(http.MethodDelete, "/outputs/"+id, nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, deleted.StatusCode)

	gone, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/outputs/"+id, nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, gone.StatusCode)

	again, err := f.app.Test(httptest.NewRequest(http.MethodDelete, "/outputs/"+id, nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, again.StatusCode)
}

func TestOptionalRoutesAbsentWhenDisabled(t *testing.T) {
	f := newFixture(t, nil, app.Deps{})
	for _, path := range []string{"/outputs/abc", "/history"} {
		resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestStatusForError(t *testing.T) {
	require.Equal(t, fiber.StatusBadRequest, statusForError(synth.ErrMissingInput))
	require.Equal(t, fiber.StatusNotFound, statusForError(synth.ErrVoiceNotFound))
	require.Equal(t, fiber.StatusServiceUnavailable, statusForError(synth.ErrEngineUnavailable))
	require.Equal(t, fiber.StatusInternalServerError, statusForError(errors.New("x")))
}

package synth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/voiceclone/internal/config"
)

func TestXTTSServerEngineSynthesize(t *testing.T) {
	var got xttsSpeechRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tts_to_audio/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFserver"))
	}))
	defer ts.Close()

	engine := NewXTTSServerEngine(config.EngineConfig{
		Model:      config.DefaultModelName,
		XTTSServer: config.XTTSConfig{BaseURL: ts.URL + "/", SpeechPath: "tts_to_audio/", HealthPath: "/speakers_list"},
	}, ts.Client())

	audio, err := engine.Synthesize(context.Background(), EngineRequest{Voice: "voice.wav", Text: "Hi", Language: "it"})
	require.NoError(t, err)
	require.Equal(t, []byte("RIFFserver"), audio)
	require.Equal(t, xttsSpeechRequest{Text: "Hi", SpeakerWav: "voice.wav", Language: "it"}, got)
}

func TestXTTSServerEngineErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "speaker not found", http.StatusBadRequest)
	}))
	defer ts.Close()

	engine := NewXTTSServerEngine(config.EngineConfig{XTTSServer: config.XTTSConfig{BaseURL: ts.URL, SpeechPath: "/tts_to_audio/"}}, nil)
	_, err := engine.Synthesize(context.Background(), EngineRequest{Voice: "v", Text: "t", Language: "en"})
	require.ErrorContains(t, err, "status 400")
	require.ErrorContains(t, err, "speaker not found")
}

func TestXTTSServerEngineWarmWaitsForModel(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/speakers_list", r.URL.Path)
		if hits.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`["voice"]`))
	}))
	defer ts.Close()

	engine := NewXTTSServerEngine(config.EngineConfig{
		WarmTimeout: 5 * time.Second,
		XTTSServer:  config.XTTSConfig{BaseURL: ts.URL, HealthPath: "/speakers_list"},
	}, nil)
	require.NoError(t, engine.Warm(context.Background()))
	require.GreaterOrEqual(t, hits.Load(), int32(2))
}

func TestXTTSServerEngineWarmTimesOut(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	engine := NewXTTSServerEngine(config.EngineConfig{
		WarmTimeout: 50 * time.Millisecond,
		XTTSServer:  config.XTTSConfig{BaseURL: ts.URL, HealthPath: "/health"},
	}, nil)
	require.ErrorIs(t, engine.Warm(context.Background()), ErrEngineUnavailable)
}

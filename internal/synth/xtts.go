package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ncecere/voiceclone/internal/config"
)

// XTTSServerEngine talks to a resident XTTS server which keeps the model
// loaded between requests.
type XTTSServerEngine struct {
	baseURL     string
	speechPath  string
	healthPath  string
	model       string
	warmTimeout time.Duration
	client      *http.Client
}

type xttsSpeechRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

func NewXTTSServerEngine(cfg config.EngineConfig, client *http.Client) *XTTSServerEngine {
	if client == nil {
		client = &http.Client{}
	}
	return &XTTSServerEngine{
		baseURL:     strings.TrimRight(cfg.XTTSServer.BaseURL, "/"),
		speechPath:  "/" + strings.TrimLeft(cfg.XTTSServer.SpeechPath, "/"),
		healthPath:  "/" + strings.TrimLeft(cfg.XTTSServer.HealthPath, "/"),
		model:       cfg.Model,
		warmTimeout: cfg.WarmTimeout,
		client:      client,
	}
}

func (e *XTTSServerEngine) Name() string  { return config.EngineXTTSServer }
func (e *XTTSServerEngine) Model() string { return e.model }

// Warm polls the server until it answers, which happens once the model has
// finished loading.
func (e *XTTSServerEngine) Warm(ctx context.Context) error {
	timeout := e.warmTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = e.ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrEngineUnavailable, lastErr)
		case <-ticker.C:
		}
	}
}

func (e *XTTSServerEngine) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+e.healthPath, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("xtts server health status %d", resp.StatusCode)
	}
	return nil
}

func (e *XTTSServerEngine) Synthesize(ctx context.Context, req EngineRequest) ([]byte, error) {
	payload, err := json.Marshal(xttsSpeechRequest{
		Text:       req.Text,
		SpeakerWav: req.Voice,
		Language:   string(req.Language),
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+e.speechPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("xtts server request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxStderrTail))
		return nil, fmt.Errorf("xtts server status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read xtts server response: %w", err)
	}
	return data, nil
}

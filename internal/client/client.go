// Package client calls a running voiceclone server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ncecere/voiceclone/internal/audio"
	"github.com/ncecere/voiceclone/internal/synth"
)

// Client is a thin wrapper around the /tts and /health endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// APIError is a non-200 answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps the status back onto the synth sentinels so callers can use
// errors.Is regardless of where synthesis ran.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return synth.ErrMissingInput
	case http.StatusNotFound:
		return synth.ErrVoiceNotFound
	case http.StatusServiceUnavailable:
		return synth.ErrEngineUnavailable
	default:
		return nil
	}
}

type Health struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Engine string `json:"engine"`
}

// Synthesize posts req to /tts and returns the WAV body.
func (c *Client) Synthesize(ctx context.Context, req synth.Request) ([]byte, string, error) {
	payload, err := json.Marshal(map[string]string{
		"voice":    req.Voice,
		"text":     req.Text,
		"language": req.Language,
	})
	if err != nil {
		return nil, "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("post /tts: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read /tts response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", decodeError(resp.StatusCode, body)
	}
	if _, err := audio.InspectBytes(body); err != nil {
		return nil, "", fmt.Errorf("unexpected /tts response: %w", err)
	}
	return body, resp.Header.Get("X-Language"), nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Health{}, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Health{}, fmt.Errorf("get /health: %w", err)
	}
	defer resp.Body.Close()
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return Health{}, fmt.Errorf("decode /health: %w", err)
	}
	return h, nil
}

func decodeError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{Status: status, Message: msg}
}

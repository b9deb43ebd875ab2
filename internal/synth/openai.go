package synth

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ncecere/voiceclone/internal/config"
)

// OpenAIEngine targets OpenAI-compatible speech servers that front XTTS
// (openedai-speech and friends). The reference file stem is used as the
// voice name, so samples must be registered with the server under that name.
type OpenAIEngine struct {
	client *openai.Client
	model  string
	alias  string
	speed  float64
}

func NewOpenAIEngine(cfg config.EngineConfig, extra ...option.RequestOption) *OpenAIEngine {
	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(cfg.OpenAI.BaseURL, "/") + "/"),
		option.WithMaxRetries(0),
	}
	if key := strings.TrimSpace(cfg.OpenAI.APIKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	opts = append(opts, extra...)
	client := openai.NewClient(opts...)
	return &OpenAIEngine{
		client: &client,
		model:  cfg.OpenAI.Model,
		alias:  cfg.Model,
		speed:  cfg.OpenAI.Speed,
	}
}

func (e *OpenAIEngine) Name() string  { return config.EngineOpenAI }
func (e *OpenAIEngine) Model() string { return e.alias }

// Warm lists models to confirm the endpoint is reachable.
func (e *OpenAIEngine) Warm(ctx context.Context) error {
	if _, err := e.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return nil
}

func (e *OpenAIEngine) Synthesize(ctx context.Context, req EngineRequest) ([]byte, error) {
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(e.model),
		Input:          req.Text,
		Voice:          openai.AudioSpeechNewParamsVoice(VoiceName(req.Voice)),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat("wav"),
	}
	if e.speed > 0 {
		params.Speed = openai.Float(e.speed)
	}
	resp, err := e.client.Audio.Speech.New(ctx, params, option.WithJSONSet("language", string(req.Language)))
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openai speech response: %w", err)
	}
	return data, nil
}

// VoiceName derives the server-side voice name from a reference sample path.
func VoiceName(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

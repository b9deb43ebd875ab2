package synth

import (
	"fmt"
	"net/http"

	"github.com/ncecere/voiceclone/internal/config"
)

// NewEngine builds the engine selected by cfg.Kind.
func NewEngine(cfg config.EngineConfig) (Engine, error) {
	switch cfg.Kind {
	case config.EngineCommand, "":
		return NewCommandEngine(cfg), nil
	case config.EngineXTTSServer:
		return NewXTTSServerEngine(cfg, &http.Client{Timeout: cfg.Timeout}), nil
	case config.EngineOpenAI:
		return NewOpenAIEngine(cfg), nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", cfg.Kind)
	}
}

package synth

import (
	"context"
	"errors"

	"github.com/ncecere/voiceclone/internal/languages"
)

var (
	// ErrMissingInput is returned when the voice path or text is empty.
	ErrMissingInput = errors.New("missing voice or text")
	// ErrVoiceNotFound is returned when the reference voice file does not exist.
	ErrVoiceNotFound = errors.New("voice file not found")
	// ErrEngineUnavailable is returned when the engine has not been warmed or cannot be reached.
	ErrEngineUnavailable = errors.New("synthesis engine unavailable")
	// ErrEmptyAudio is returned when an engine reports success without producing audio.
	ErrEmptyAudio = errors.New("engine produced no audio")
)

// EngineRequest is the already-validated input handed to an engine.
type EngineRequest struct {
	Voice    string
	Text     string
	Language languages.Code
	Model    string
}

// Engine forwards a synthesis request to an external XTTS runtime and returns
// a complete WAV file.
type Engine interface {
	Name() string
	Model() string
	Warm(ctx context.Context) error
	Synthesize(ctx context.Context, req EngineRequest) ([]byte, error)
}

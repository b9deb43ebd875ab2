package synth

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ncecere/voiceclone/internal/config"
)

const maxStderrTail = 2048

// CommandEngine runs the Coqui `tts` CLI once per request. Every call pays the
// model load cost; prefer the xtts-server engine for long running services.
type CommandEngine struct {
	binary  string
	model   string
	useCUDA bool
	tempDir string
	extra   []string
}

func NewCommandEngine(cfg config.EngineConfig) *CommandEngine {
	return &CommandEngine{
		binary:  cfg.Command.Binary,
		model:   cfg.Model,
		useCUDA: cfg.Command.UseCUDA,
		tempDir: cfg.Command.TempDir,
		extra:   append([]string(nil), cfg.Command.Args...),
	}
}

func (e *CommandEngine) Name() string  { return config.EngineCommand }
func (e *CommandEngine) Model() string { return e.model }

// Warm verifies the CLI is installed.
func (e *CommandEngine) Warm(ctx context.Context) error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return fmt.Errorf("%w: %s not found on PATH: %v", ErrEngineUnavailable, e.binary, err)
	}
	return ctx.Err()
}

func (e *CommandEngine) Synthesize(ctx context.Context, req EngineRequest) ([]byte, error) {
	out, err := os.CreateTemp(e.tempDir, "voiceclone-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp output: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	model := req.Model
	if model == "" {
		model = e.model
	}
	args := e.args(model, req, outPath)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("tts command aborted: %w", ctxErr)
		}
		return nil, fmt.Errorf("tts command failed: %w: %s", err, tail(stderr.String(), maxStderrTail))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read tts output: %w", err)
	}
	return data, nil
}

func (e *CommandEngine) args(model string, req EngineRequest, outPath string) []string {
	args := []string{
		"--model_name", model,
		"--text", req.Text,
		"--speaker_wav", req.Voice,
		"--language_idx", string(req.Language),
		"--out_path", outPath,
	}
	if e.useCUDA {
		args = append(args, "--use_cuda", "true")
	}
	return append(args, e.extra...)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// Package cli holds the cobra commands behind cmd/tts and cmd/record.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ncecere/voiceclone/internal/client"
	"github.com/ncecere/voiceclone/internal/config"
	"github.com/ncecere/voiceclone/internal/languages"
	"github.com/ncecere/voiceclone/internal/logging"
	"github.com/ncecere/voiceclone/internal/playback"
	"github.com/ncecere/voiceclone/internal/synth"
)

// TTSDeps overrides collaborators of the tts command. Zero values select
// the engine from config and the real speaker.
type TTSDeps struct {
	Engine synth.Engine
	Play   func(ctx context.Context, path string, progress io.Writer) error
}

type ttsFlags struct {
	voice      string
	text       string
	language   string
	output     string
	server     string
	configFile string
	play       bool
}

// NewTTSCommand builds the one-shot synthesis command.
func NewTTSCommand(deps TTSDeps) *cobra.Command {
	var flags ttsFlags

	cmd := &cobra.Command{
		Use:   "tts --voice voice.wav --text \"Hello\" [--output output.wav]",
		Short: "Generate speech in a cloned voice",
		Long: `Generate speech from text using a reference voice sample and XTTS v2.

Examples:
  tts --voice voice.wav --text "Hello there"
  tts --voice voice.wav --text "Bonjour" --language fr --output bonjour.wav
  tts --voice voice.wav --text "Hi" --server http://127.0.0.1:5000 --play`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTTS(cmd.Context(), cmd.ErrOrStderr(), flags, deps)
		},
	}

	cmd.Flags().StringVar(&flags.voice, "voice", "", "Path to reference voice WAV file")
	cmd.Flags().StringVar(&flags.text, "text", "", "Text to synthesize")
	cmd.Flags().StringVar(&flags.language, "language", string(languages.Default), "Language code")
	cmd.Flags().StringVar(&flags.output, "output", "output.wav", "Output WAV file path")
	cmd.Flags().StringVar(&flags.server, "server", "", "Base URL of a running voiceclone server; synthesize locally when empty")
	cmd.Flags().StringVar(&flags.configFile, "config", "", "Path to voiceclone.yaml")
	cmd.Flags().BoolVar(&flags.play, "play", false, "Play the generated audio")
	_ = cmd.MarkFlagRequired("voice")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func runTTS(ctx context.Context, stderr io.Writer, flags ttsFlags, deps TTSDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(flags.text) == "" {
		return synth.ErrMissingInput
	}

	var (
		data []byte
		lang string
		err  error
	)
	if flags.server != "" {
		fmt.Fprintf(stderr, "Generating: '%s'\n", preview(flags.text))
		data, lang, err = client.New(flags.server, nil).Synthesize(ctx, synth.Request{
			Voice:    flags.voice,
			Text:     flags.text,
			Language: flags.language,
		})
	} else {
		data, lang, err = synthesizeLocally(ctx, stderr, flags, deps.Engine)
	}
	if err != nil {
		return err
	}

	if err := writeOutput(flags.output, data); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Generated: %s\n", flags.output)
	fmt.Fprintf(stderr, "Language: %s\n", lang)

	if flags.play {
		play := deps.Play
		if play == nil {
			play = playback.PlayFile
		}
		if d, err := playback.Duration(flags.output); err == nil {
			fmt.Fprintf(stderr, "Playing %s (%s)\n", flags.output, d.Round(100*time.Millisecond))
		}
		if err := play(ctx, flags.output, stderr); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("play output: %w", err)
		}
	}
	return nil
}

// synthesizeLocally checks the voice file before loading the model so a
// typo does not cost a model load.
func synthesizeLocally(ctx context.Context, stderr io.Writer, flags ttsFlags, engine synth.Engine) ([]byte, string, error) {
	if info, err := os.Stat(flags.voice); err != nil || info.IsDir() {
		return nil, "", fmt.Errorf("%w: %s", synth.ErrVoiceNotFound, flags.voice)
	}

	cfg, err := config.Load(config.Options{ConfigFile: flags.configFile})
	if err != nil {
		return nil, "", err
	}
	cfg.Log.Level = "warn"
	logger := logging.New(stderr, cfg.Log)

	if engine == nil {
		engine, err = synth.NewEngine(cfg.Engine)
		if err != nil {
			return nil, "", err
		}
	}
	svc := synth.NewService(engine, synth.ServiceOptions{
		DefaultLanguage: languages.Code(cfg.Languages.Default),
		ModelAlias:      cfg.Engine.ModelAlias,
		Timeout:         cfg.Engine.Timeout,
		Logger:          logger,
	})

	fmt.Fprintln(stderr, "Loading XTTS model...")
	if err := svc.Warm(ctx); err != nil {
		return nil, "", err
	}

	fmt.Fprintf(stderr, "Generating: '%s'\n", preview(flags.text))
	res, err := svc.Synthesize(ctx, synth.Request{Voice: flags.voice, Text: flags.text, Language: flags.language})
	if err != nil {
		return nil, "", err
	}
	if !res.LanguageHonoured {
		logger.Warn("unsupported language, used default", slog.String("requested", flags.language), slog.String("language", string(res.Language)))
	}
	return res.Audio, string(res.Language), nil
}

// writeOutput leaves no partial file behind on failure.
func writeOutput(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tts-*.wav")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= 50 {
		return text
	}
	return string(r[:50]) + "..."
}

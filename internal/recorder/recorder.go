// Package recorder captures a reference voice sample from a microphone.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ncecere/voiceclone/internal/audio"
	"github.com/ncecere/voiceclone/internal/config"
)

// ErrNoAudio is returned when the device delivered nothing before stopping.
var ErrNoAudio = errors.New("no audio captured")

type Options struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
	Output     string
	// Progress receives the prompt and progress bar; nil disables both.
	Progress io.Writer
	Logger   *slog.Logger
}

// OptionsFromConfig fills Options from the recording section.
func OptionsFromConfig(cfg config.RecordingConfig) Options {
	return Options{
		Duration:   cfg.Duration,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Output:     cfg.Output,
	}
}

type Result struct {
	Path        string
	Samples     int
	Duration    time.Duration
	Interrupted bool
}

func (o *Options) normalize() {
	if o.Duration <= 0 {
		o.Duration = 30 * time.Second
	}
	if o.SampleRate <= 0 {
		o.SampleRate = 44100
	}
	if o.Channels <= 0 {
		o.Channels = 1
	}
	if o.Output == "" {
		o.Output = "voice.wav"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Record captures audio from dev for opts.Duration and writes it as WAV.
// Cancelling ctx stops early; whatever was captured so far is still saved.
func Record(ctx context.Context, dev Device, opts Options) (Result, error) {
	opts.normalize()

	limit := int(opts.Duration.Seconds()*float64(opts.SampleRate)) * opts.Channels
	var (
		mu      sync.Mutex
		samples = make([]int16, 0, limit)
	)
	sink := func(in []int16) {
		mu.Lock()
		defer mu.Unlock()
		room := limit - len(samples)
		if room <= 0 {
			return
		}
		if len(in) > room {
			in = in[:room]
		}
		samples = append(samples, in...)
	}

	if opts.Progress != nil {
		fmt.Fprintln(opts.Progress, "Recording... Speak clearly")
	}
	opts.Logger.Debug("recording started",
		slog.Duration("duration", opts.Duration),
		slog.Int("sample_rate", opts.SampleRate),
		slog.Int("channels", opts.Channels))

	if err := dev.Start(opts.SampleRate, opts.Channels, sink); err != nil {
		return Result{}, err
	}

	bar := newBar(opts.Progress, opts.Duration)
	interrupted := waitForCapture(ctx, opts.Duration, bar, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(samples) >= limit
	})
	stopErr := dev.Stop()
	if bar != nil {
		_ = bar.Finish()
	}
	if stopErr != nil {
		opts.Logger.Warn("stop recording device", slog.Any("error", stopErr))
	}

	mu.Lock()
	captured := append([]int16(nil), samples...)
	mu.Unlock()
	if len(captured) == 0 {
		return Result{}, ErrNoAudio
	}

	if err := audio.WriteFile(opts.Output, captured, opts.SampleRate, opts.Channels); err != nil {
		return Result{}, err
	}
	frames := len(captured) / opts.Channels
	return Result{
		Path:        opts.Output,
		Samples:     len(captured),
		Duration:    time.Duration(frames) * time.Second / time.Duration(opts.SampleRate),
		Interrupted: interrupted,
	}, nil
}

// waitForCapture returns true when ctx ended the recording early.
func waitForCapture(ctx context.Context, d time.Duration, bar *progressbar.ProgressBar, full func() bool) bool {
	start := time.Now()
	deadline := time.NewTimer(d)
	defer deadline.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-deadline.C:
			return false
		case <-ticker.C:
			if bar != nil {
				_ = bar.Set64(int64(time.Since(start) / time.Millisecond))
			}
			if full() {
				return false
			}
		}
	}
}

func newBar(w io.Writer, d time.Duration) *progressbar.ProgressBar {
	if w == nil {
		return nil
	}
	return progressbar.NewOptions64(
		int64(d/time.Millisecond),
		progressbar.OptionSetDescription("Recording"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

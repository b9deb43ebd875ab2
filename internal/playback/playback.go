// Package playback plays synthesized WAV files on the default output device.
package playback

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/schollz/progressbar/v3"
)

// PlayFile decodes the WAV at path and blocks until playback finishes or ctx
// is cancelled. A spinner is drawn on progress when it is non-nil.
func PlayFile(ctx context.Context, path string, progress io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	stream, format, err := wav.Decode(f)
	if err != nil {
		return fmt.Errorf("decode wav: %w", err)
	}
	defer stream.Close()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("initialize speaker: %w", err)
	}
	defer speaker.Close()

	var bar *progressbar.ProgressBar
	if progress != nil {
		bar = progressbar.NewOptions64(
			-1,
			progressbar.OptionSetDescription("Speaking..."),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetWidth(10),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(progress, "\n")
			}),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(stream, beep.Callback(func() {
		close(done)
	})))

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			if bar != nil {
				bar.Describe("Done")
				_ = bar.Close()
			}
			return nil
		case <-ctx.Done():
			speaker.Clear()
			if bar != nil {
				_ = bar.Close()
			}
			return ctx.Err()
		case <-ticker.C:
			if bar != nil {
				_ = bar.Set(stream.Position())
			}
		}
	}
}

// Duration reports the playback length of the WAV at path without opening
// an output device.
func Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	stream, format, err := wav.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("decode wav: %w", err)
	}
	defer stream.Close()
	return format.SampleRate.D(stream.Len()), nil
}

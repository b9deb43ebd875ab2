package recorder

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/voiceclone/internal/audio"
)

// fakeDevice feeds a constant tone in fixed chunks until stopped.
type fakeDevice struct {
	chunk   int
	every   time.Duration
	stop    chan struct{}
	wg      sync.WaitGroup
	stopped bool
}

func (d *fakeDevice) Start(sampleRate, channels int, sink func([]int16)) error {
	d.stop = make(chan struct{})
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		buf := make([]int16, d.chunk*channels)
		for i := range buf {
			buf[i] = 1200
		}
		ticker := time.NewTicker(d.every)
		defer ticker.Stop()
		for {
			select {
			case <-d.stop:
				return
			case <-ticker.C:
				sink(buf)
			}
		}
	}()
	return nil
}

func (d *fakeDevice) Stop() error {
	close(d.stop)
	d.wg.Wait()
	d.stopped = true
	return nil
}

type silentDevice struct{}

func (silentDevice) Start(int, int, func([]int16)) error { return nil }
func (silentDevice) Stop() error                         { return nil }

func TestRecordStopsAtDuration(t *testing.T) {
	out := filepath.Join(t.TempDir(), "voice.wav")
	dev := &fakeDevice{chunk: 800, every: time.Millisecond}
	var progress bytes.Buffer

	res, err := Record(context.Background(), dev, Options{
		Duration:   200 * time.Millisecond,
		SampleRate: 8000,
		Output:     out,
		Progress:   &progress,
	})
	require.NoError(t, err)
	require.True(t, dev.stopped)
	require.False(t, res.Interrupted)
	require.Equal(t, out, res.Path)
	require.LessOrEqual(t, res.Samples, 1600)
	require.Contains(t, progress.String(), "Recording... Speak clearly")

	info, err := audio.InspectFile(out)
	require.NoError(t, err)
	require.Equal(t, 8000, info.SampleRate)
	require.Equal(t, 1, info.Channels)
}

func TestRecordInterruptedKeepsPartialAudio(t *testing.T) {
	out := filepath.Join(t.TempDir(), "partial.wav")
	dev := &fakeDevice{chunk: 100, every: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	res, err := Record(ctx, dev, Options{Duration: 10 * time.Second, SampleRate: 16000, Output: out})
	require.NoError(t, err)
	require.True(t, res.Interrupted)
	require.Greater(t, res.Samples, 0)
	require.Less(t, res.Duration, time.Second)
	require.FileExists(t, out)
}

func TestRecordWithoutAudioFails(t *testing.T) {
	out := filepath.Join(t.TempDir(), "empty.wav")
	_, err := Record(context.Background(), silentDevice{}, Options{Duration: 20 * time.Millisecond, Output: out})
	require.ErrorIs(t, err, ErrNoAudio)
	require.NoFileExists(t, out)
}

package audio

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "voice.wav")
	samples := make([]int16, 44100/2)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}

	require.NoError(t, WriteFile(path, samples, 44100, 1))

	info, err := InspectFile(path)
	require.NoError(t, err)
	require.Equal(t, 44100, info.SampleRate)
	require.Equal(t, 1, info.Channels)
	require.Equal(t, BitDepth, info.BitDepth)
	require.InDelta(t, float64(500*time.Millisecond), float64(info.Duration), float64(5*time.Millisecond))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file should be renamed away")
}

func TestWriteFileIsWorldReadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	path := filepath.Join(t.TempDir(), "voice.wav")
	require.NoError(t, WriteFile(path, make([]int16, 100), 16000, 1))

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), st.Mode().Perm())
}

func TestWriteFileRejectsBadFormat(t *testing.T) {
	require.Error(t, WriteFile(filepath.Join(t.TempDir(), "x.wav"), nil, 0, 1))
}

func TestInspectBytesRejectsNonWAV(t *testing.T) {
	_, err := InspectBytes([]byte(`{"error":"voice file not found"}`))
	require.ErrorIs(t, err, ErrNotWAV)
}

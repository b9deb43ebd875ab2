package synth

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/voiceclone/internal/config"
)

// fakeTTS writes a shell script that mimics the Coqui CLI: it records its
// arguments and writes a payload to the --out_path argument.
func fakeTTS(t *testing.T, body string) (string, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := "#!/bin/sh\n" +
		"printf '%s\\n' \"$@\" > " + argsFile + "\n" +
		body
	path := filepath.Join(dir, "tts")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path, argsFile
}

const writeOutput = `
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--out_path" ]; then out="$2"; fi
  shift
done
printf 'RIFFfake' > "$out"
`

func TestCommandEngineSynthesize(t *testing.T) {
	bin, argsFile := fakeTTS(t, writeOutput)
	engine := NewCommandEngine(config.EngineConfig{
		Model:   config.DefaultModelName,
		Command: config.CommandConfig{Binary: bin, UseCUDA: true, TempDir: t.TempDir()},
	})
	require.NoError(t, engine.Warm(context.Background()))

	audio, err := engine.Synthesize(context.Background(), EngineRequest{
		Voice:    "/samples/voice.wav",
		Text:     "Hello world",
		Language: "fr",
	})
	require.NoError(t, err)
	require.Equal(t, []byte("RIFFfake"), audio)

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Equal(t, []string{
		"--model_name", config.DefaultModelName,
		"--text", "Hello world",
		"--speaker_wav", "/samples/voice.wav",
		"--language_idx", "fr",
		"--out_path", args[9],
		"--use_cuda", "true",
	}, args)

	_, err = os.Stat(args[9])
	require.True(t, os.IsNotExist(err), "temp output should be removed")
}

func TestCommandEngineFailureIncludesStderr(t *testing.T) {
	bin, _ := fakeTTS(t, "echo 'model download failed' >&2\nexit 3\n")
	engine := NewCommandEngine(config.EngineConfig{Command: config.CommandConfig{Binary: bin}})

	_, err := engine.Synthesize(context.Background(), EngineRequest{Voice: "v.wav", Text: "hi", Language: "en"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "model download failed")
}

func TestCommandEngineWarmMissingBinary(t *testing.T) {
	engine := NewCommandEngine(config.EngineConfig{Command: config.CommandConfig{Binary: filepath.Join(t.TempDir(), "missing-tts")}})
	require.ErrorIs(t, engine.Warm(context.Background()), ErrEngineUnavailable)
}

func TestTail(t *testing.T) {
	require.Equal(t, "abc", tail("  abc \n", 10))
	require.Equal(t, "...cde", tail("abcde", 3))
}

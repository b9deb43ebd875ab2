package synth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ncecere/voiceclone/internal/languages"
	"github.com/ncecere/voiceclone/internal/observability"
)

// ContentTypeWAV is the media type of every engine result.
const ContentTypeWAV = "audio/wav"

// Cache stores synthesized audio keyed by request fingerprint.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Archiver keeps a copy of synthesized audio and returns its identifier.
type Archiver interface {
	Archive(ctx context.Context, audio []byte, meta ArchiveMeta) (string, error)
}

type ArchiveMeta struct {
	Voice    string
	Language languages.Code
	Engine   string
}

// Attempt describes one finished synthesis for audit purposes.
type Attempt struct {
	Voice     string
	Language  languages.Code
	TextChars int
	Bytes     int
	Engine    string
	Err       error
	Latency   time.Duration
	OutputID  string
}

// HistoryRecorder persists synthesis attempts.
type HistoryRecorder interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
}

// Info identifies the loaded model for health reporting.
type Info struct {
	Ready           bool
	Engine          string
	Model           string
	DefaultLanguage languages.Code
}

// Request is a caller supplied synthesis request. Fields are passed through
// to the engine unchanged apart from trimming and language resolution.
type Request struct {
	Voice    string
	Text     string
	Language string
}

// Result carries the synthesized WAV and how it was produced.
type Result struct {
	Audio            []byte
	ContentType      string
	Language         languages.Code
	LanguageHonoured bool
	Engine           string
	Model            string
	Cached           bool
	Duration         time.Duration
	OutputID         string
}

// ServiceOptions tunes a Service. Zero values are usable.
type ServiceOptions struct {
	DefaultLanguage languages.Code
	ModelAlias      string
	Timeout         time.Duration
	MaxConcurrency  int
	Cache           Cache
	Archive         Archiver
	History         HistoryRecorder
	Metrics         *observability.Provider
	Logger          *slog.Logger
}

// Service owns the process-wide engine and serializes access to it.
type Service struct {
	engine      Engine
	defaultLang languages.Code
	modelAlias  string
	timeout     time.Duration
	slots       chan struct{}
	cache       Cache
	archive     Archiver
	history     HistoryRecorder
	metrics     *observability.Provider
	logger      *slog.Logger
	ready       atomic.Bool
}

func NewService(engine Engine, opts ServiceOptions) *Service {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if _, ok := languages.Lookup(string(opts.DefaultLanguage)); !ok {
		opts.DefaultLanguage = languages.Default
	}
	alias := strings.TrimSpace(opts.ModelAlias)
	if alias == "" {
		alias = engine.Model()
	}
	return &Service{
		engine:      engine,
		defaultLang: opts.DefaultLanguage,
		modelAlias:  alias,
		timeout:     opts.Timeout,
		slots:       make(chan struct{}, opts.MaxConcurrency),
		cache:       opts.Cache,
		archive:     opts.Archive,
		history:     opts.History,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
}

// Warm prepares the engine once; the service reports ready afterwards.
func (s *Service) Warm(ctx context.Context) error {
	start := time.Now()
	s.logger.Info("loading synthesis engine", slog.String("engine", s.engine.Name()), slog.String("model", s.engine.Model()))
	if err := s.engine.Warm(ctx); err != nil {
		return err
	}
	s.ready.Store(true)
	s.logger.Info("synthesis engine ready", slog.String("engine", s.engine.Name()), slog.Duration("elapsed", time.Since(start)))
	return nil
}

// Probe re-checks the engine and updates readiness to match.
func (s *Service) Probe(ctx context.Context) error {
	err := s.engine.Warm(ctx)
	was := s.ready.Swap(err == nil)
	switch {
	case err != nil && was:
		s.logger.Warn("synthesis engine unavailable", slog.String("engine", s.engine.Name()), slog.Any("error", err))
	case err == nil && !was:
		s.logger.Info("synthesis engine recovered", slog.String("engine", s.engine.Name()))
	}
	return err
}

func (s *Service) Ready() bool { return s.ready.Load() }

func (s *Service) EngineName() string { return s.engine.Name() }

func (s *Service) ModelAlias() string { return s.modelAlias }

func (s *Service) DefaultLanguage() languages.Code { return s.defaultLang }

func (s *Service) Describe() Info {
	return Info{
		Ready:           s.ready.Load(),
		Engine:          s.engine.Name(),
		Model:           s.modelAlias,
		DefaultLanguage: s.defaultLang,
	}
}

// Synthesize validates req, then runs it through the cache and engine.
func (s *Service) Synthesize(ctx context.Context, req Request) (Result, error) {
	voice := strings.TrimSpace(req.Voice)
	text := strings.TrimSpace(req.Text)
	if voice == "" || text == "" {
		return Result{}, ErrMissingInput
	}
	if err := checkVoiceFile(voice); err != nil {
		return Result{}, err
	}
	if !s.ready.Load() {
		return Result{}, ErrEngineUnavailable
	}

	lang, honoured := languages.Resolve(req.Language, s.defaultLang)
	if !honoured && strings.TrimSpace(req.Language) != "" {
		s.logger.Warn("unsupported language, using default",
			slog.String("requested", req.Language),
			slog.String("language", string(lang)))
	}

	result := Result{
		ContentType:      ContentTypeWAV,
		Language:         lang,
		LanguageHonoured: honoured,
		Engine:           s.engine.Name(),
		Model:            s.modelAlias,
	}

	var cacheKey string
	if s.cache != nil {
		key, err := s.fingerprint(voice, text, lang)
		if err != nil {
			s.logger.Warn("cache fingerprint failed", slog.String("voice", voice), slog.Any("error", err))
		} else {
			cacheKey = key
			if data, ok := s.cache.Get(ctx, cacheKey); ok && len(data) > 0 {
				s.metrics.RecordCacheLookup(true)
				result.Audio = data
				result.Cached = true
				return result, nil
			}
			s.metrics.RecordCacheLookup(false)
		}
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer release()

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.Info("generating speech",
		slog.String("voice", voice),
		slog.String("language", string(lang)),
		slog.String("text", preview(text, 50)))

	start := time.Now()
	audio, err := s.engine.Synthesize(callCtx, EngineRequest{
		Voice:    voice,
		Text:     text,
		Language: lang,
		Model:    s.engine.Model(),
	})
	result.Duration = time.Since(start)
	if err == nil && len(audio) == 0 {
		err = ErrEmptyAudio
	}
	if err != nil {
		s.metrics.RecordSynthesis(s.engine.Name(), string(lang), "error", 0, result.Duration)
		s.logger.Error("synthesis failed", slog.String("voice", voice), slog.Any("error", err))
		s.recordAttempt(ctx, Attempt{Voice: voice, Language: lang, TextChars: len([]rune(text)), Engine: s.engine.Name(), Err: err, Latency: result.Duration})
		return Result{}, fmt.Errorf("synthesize: %w", err)
	}
	s.metrics.RecordSynthesis(s.engine.Name(), string(lang), "ok", len(audio), result.Duration)
	s.logger.Info("speech generated", slog.Int("bytes", len(audio)), slog.Duration("elapsed", result.Duration))

	result.Audio = audio
	if cacheKey != "" {
		s.cache.Set(ctx, cacheKey, audio)
	}
	if s.archive != nil {
		id, err := s.archive.Archive(ctx, audio, ArchiveMeta{Voice: voice, Language: lang, Engine: s.engine.Name()})
		if err != nil {
			s.logger.Warn("archive output failed", slog.Any("error", err))
		} else {
			result.OutputID = id
		}
	}
	s.recordAttempt(ctx, Attempt{
		Voice:     voice,
		Language:  lang,
		TextChars: len([]rune(text)),
		Bytes:     len(audio),
		Engine:    s.engine.Name(),
		Latency:   result.Duration,
		OutputID:  result.OutputID,
	})
	return result, nil
}

// recordAttempt logs and drops history errors.
func (s *Service) recordAttempt(ctx context.Context, attempt Attempt) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		s.logger.Warn("record history failed", slog.Any("error", err))
	}
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	select {
	case s.slots <- struct{}{}:
		return func() { <-s.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fingerprint hashes the voice sample content so edits to the sample
// invalidate cached audio even when the path is unchanged.
func (s *Service) fingerprint(voice, text string, lang languages.Code) (string, error) {
	f, err := os.Open(voice)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	for _, part := range []string{text, string(lang), s.engine.Name(), s.engine.Model()} {
		h.Write([]byte{0})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func checkVoiceFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrVoiceNotFound, path)
		}
		return fmt.Errorf("stat voice file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrVoiceNotFound, path)
	}
	return nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

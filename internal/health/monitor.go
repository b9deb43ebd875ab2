// Package health keeps the synthesis engine's readiness current while the
// server runs.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ncecere/voiceclone/internal/config"
)

// Target is re-checked on every tick. synth.Service satisfies it.
type Target interface {
	Probe(ctx context.Context) error
}

// Monitor periodically probes the engine so /health reflects an external
// XTTS runtime that went away or came back.
type Monitor struct {
	target    Target
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	startOnce sync.Once
}

// NewMonitor returns nil when cfg.HealthInterval is zero.
func NewMonitor(target Target, cfg config.EngineConfig, logger *slog.Logger) *Monitor {
	if target == nil || cfg.HealthInterval <= 0 {
		return nil
	}
	timeout := cfg.WarmTimeout
	if timeout <= 0 || timeout > cfg.HealthInterval {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		target:   target,
		interval: cfg.HealthInterval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start begins the monitoring loop until ctx is canceled.
func (m *Monitor) Start(ctx context.Context) {
	if m == nil {
		return
	}
	m.startOnce.Do(func() {
		go m.run(ctx)
	})
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	timeoutCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.target.Probe(timeoutCtx); err != nil {
		m.logger.Debug("engine probe failed", slog.Any("error", err))
	}
}

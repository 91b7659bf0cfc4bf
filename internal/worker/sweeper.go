package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/snake-lounge/internal/config"
)

// StaleSweeper deletes active sessions older than a cutoff
type StaleSweeper interface {
	SweepStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SweepWorker periodically removes sessions that stopped sending snapshots
type SweepWorker struct {
	sweeper StaleSweeper
	config  *config.SpectatorConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSweepWorker creates a new sweep worker
func NewSweepWorker(sweeper StaleSweeper, cfg *config.SpectatorConfig, logger *slog.Logger) *SweepWorker {
	return &SweepWorker{
		sweeper: sweeper,
		config:  cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Enabled reports whether sessions expire at all. A zero stale_after keeps
// sessions until they are deleted explicitly.
func (w *SweepWorker) Enabled() bool {
	return w.config.StaleAfter > 0
}

// Start begins the background sweep
func (w *SweepWorker) Start(ctx context.Context) error {
	if !w.Enabled() {
		w.logger.Info("sweep worker disabled")
		return nil
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sweep worker started",
		"interval", w.config.SweepInterval,
		"stale_after", w.config.StaleAfter,
	)

	go w.run(ctx)
	return nil
}

// Stop stops the background sweep
func (w *SweepWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sweep worker stopped")
	return nil
}

// run is the main worker loop
func (w *SweepWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// IsRunning returns whether the worker is currently running
func (w *SweepWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single sweep and returns the number of sessions removed
func (w *SweepWorker) RunOnce(ctx context.Context) int64 {
	if !w.Enabled() {
		return 0
	}
	start := time.Now()
	n, err := w.sweeper.SweepStale(ctx, w.config.StaleAfter)
	if err != nil {
		w.logger.Error("failed to sweep stale sessions", "error", err)
		return 0
	}
	w.logger.Debug("sweep cycle completed", "duration", time.Since(start), "deleted", n)
	return n
}

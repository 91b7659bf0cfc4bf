package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/snake-lounge/internal/config"
)

type countingSweeper struct {
	calls     atomic.Int32
	olderThan atomic.Int64
	err       error
}

func (s *countingSweeper) SweepStale(_ context.Context, olderThan time.Duration) (int64, error) {
	s.calls.Add(1)
	s.olderThan.Store(int64(olderThan))
	if s.err != nil {
		return 0, s.err
	}
	return 2, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepWorkerDisabledByDefault(t *testing.T) {
	s := &countingSweeper{}
	w := NewSweepWorker(s, &config.SpectatorConfig{SweepInterval: time.Millisecond}, discard())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if w.IsRunning() {
		t.Fatal("disabled worker is running")
	}
	if n := w.RunOnce(context.Background()); n != 0 {
		t.Fatalf("RunOnce = %d", n)
	}
	if s.calls.Load() != 0 {
		t.Fatal("disabled worker swept")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSweepWorkerRunOnce(t *testing.T) {
	s := &countingSweeper{}
	cfg := &config.SpectatorConfig{StaleAfter: 5 * time.Minute, SweepInterval: time.Hour}
	w := NewSweepWorker(s, cfg, discard())

	if n := w.RunOnce(context.Background()); n != 2 {
		t.Fatalf("RunOnce = %d, want 2", n)
	}
	if got := time.Duration(s.olderThan.Load()); got != 5*time.Minute {
		t.Errorf("olderThan = %v", got)
	}

	s.err = errors.New("store down")
	if n := w.RunOnce(context.Background()); n != 0 {
		t.Fatalf("RunOnce with failing store = %d", n)
	}
}

func TestSweepWorkerStartStop(t *testing.T) {
	s := &countingSweeper{}
	cfg := &config.SpectatorConfig{StaleAfter: time.Second, SweepInterval: time.Millisecond}
	w := NewSweepWorker(s, cfg, discard())

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.IsRunning() {
		t.Fatal("worker not running after Start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.calls.Load() == 0 {
		t.Fatal("worker never swept")
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.IsRunning() {
		t.Fatal("worker running after Stop")
	}
}

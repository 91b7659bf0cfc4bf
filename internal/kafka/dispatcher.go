package kafka

import (
	"context"
	"log/slog"

	"github.com/snake-lounge/internal/domain"
	"github.com/snake-lounge/internal/metrics"
)

// SnapshotApplier replaces the snapshot of a running session
type SnapshotApplier interface {
	ApplySnapshot(ctx context.Context, sessionID int64, state domain.GameState) (*domain.ActivePlayer, error)
}

// ScoreRecorder submits a score on behalf of a user
type ScoreRecorder interface {
	SubmitFor(ctx context.Context, userID, score int64, mode domain.Mode) (*domain.LeaderboardEntry, error)
}

// Dispatcher routes decoded events to the services
type Dispatcher struct {
	snapshots SnapshotApplier
	scores    ScoreRecorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(snapshots SnapshotApplier, scores ScoreRecorder, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		snapshots: snapshots,
		scores:    scores,
		metrics:   m,
		logger:    logger,
	}
}

// HandleBatch applies events in order. A failed event is logged and
// skipped; it never blocks the rest of the batch. Returns the number
// of events applied.
func (d *Dispatcher) HandleBatch(ctx context.Context, events []Event) int {
	applied := 0
	for _, e := range events {
		if err := d.Handle(ctx, e); err != nil {
			d.logger.Warn("failed to apply event",
				"type", e.Type,
				"session_id", e.SessionID,
				"user_id", e.UserID,
				"error", err,
			)
			d.metrics.KafkaEvents.WithLabelValues(string(e.Type), "failed").Inc()
			continue
		}
		d.metrics.KafkaEvents.WithLabelValues(string(e.Type), "applied").Inc()
		applied++
	}
	return applied
}

// Handle applies a single event
func (d *Dispatcher) Handle(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	switch e.Type {
	case EventSnapshot:
		_, err := d.snapshots.ApplySnapshot(ctx, e.SessionID, *e.GameState)
		return err
	default:
		_, err := d.scores.SubmitFor(ctx, e.UserID, *e.Score, e.Mode)
		return err
	}
}

// Rejected counts a message that could not be decoded
func (d *Dispatcher) Rejected() {
	d.metrics.KafkaEvents.WithLabelValues("unknown", "rejected").Inc()
}

package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/snake-lounge/internal/auth"
	"github.com/snake-lounge/internal/domain"
	"github.com/snake-lounge/internal/metrics"
	"github.com/snake-lounge/internal/store"
)

// SpectatorService manages active sessions and their read-only view
type SpectatorService struct {
	players store.ActivePlayerStore
	users   store.UserStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSpectatorService creates a new spectator service
func NewSpectatorService(
	players store.ActivePlayerStore,
	users store.UserStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SpectatorService {
	return &SpectatorService{
		players: players,
		users:   users,
		metrics: m,
		logger:  logger,
	}
}

// Start creates a session for the calling user. The score is taken from
// the snapshot and mode must match it.
func (s *SpectatorService) Start(ctx context.Context, mode domain.Mode, state domain.GameState) (*domain.ActivePlayer, error) {
	id, err := auth.Require(ctx)
	if err != nil {
		return nil, err
	}
	user, err := currentUser(ctx, s.users, id)
	if err != nil {
		return nil, err
	}

	player, err := s.players.Create(ctx, domain.NewActivePlayer{
		UserID:    user.ID,
		Username:  user.Username,
		Score:     state.Score,
		Mode:      mode,
		GameState: state,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.SessionsStarted.WithLabelValues(string(mode)).Inc()
	s.logger.Info("session started", "session_id", player.ID, "user_id", user.ID, "mode", mode)
	return player, nil
}

// Update replaces the score and snapshot of a session on behalf of an
// authenticated caller.
func (s *SpectatorService) Update(ctx context.Context, sessionID, score int64, state domain.GameState) (*domain.ActivePlayer, error) {
	if _, err := auth.Require(ctx); err != nil {
		return nil, err
	}
	return s.apply(ctx, sessionID, domain.SessionUpdate{Score: score, GameState: state})
}

// ApplySnapshot replaces a session's snapshot with its score taken from
// the snapshot. Used by trusted producers.
func (s *SpectatorService) ApplySnapshot(ctx context.Context, sessionID int64, state domain.GameState) (*domain.ActivePlayer, error) {
	return s.apply(ctx, sessionID, domain.SessionUpdate{Score: state.Score, GameState: state})
}

func (s *SpectatorService) apply(ctx context.Context, sessionID int64, u domain.SessionUpdate) (*domain.ActivePlayer, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	// A session keeps the mode it was started with.
	current, err := s.players.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.Mode != u.GameState.Mode {
		return nil, domain.NewValidationError("mode", "session is %s, snapshot is %s", current.Mode, u.GameState.Mode)
	}

	player, err := s.players.Update(ctx, sessionID, u)
	if err != nil {
		return nil, err
	}
	s.metrics.SnapshotUpdates.Inc()
	return player, nil
}

// End deletes a session and reports whether it existed
func (s *SpectatorService) End(ctx context.Context, sessionID int64) (bool, error) {
	if _, err := auth.Require(ctx); err != nil {
		return false, err
	}
	existed, err := s.players.Delete(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if existed {
		s.metrics.SessionsEnded.Inc()
		s.logger.Info("session ended", "session_id", sessionID)
	}
	return existed, nil
}

// List returns active sessions, most recently updated first
func (s *SpectatorService) List(ctx context.Context, mode *domain.Mode) ([]domain.ActivePlayer, error) {
	return s.players.List(ctx, mode)
}

// Get returns one session
func (s *SpectatorService) Get(ctx context.Context, sessionID int64) (*domain.ActivePlayer, error) {
	return s.players.Get(ctx, sessionID)
}

// PlayerState returns the snapshot of the session named by rawID. A
// malformed id is reported as not found, like an unknown one.
func (s *SpectatorService) PlayerState(ctx context.Context, rawID string) (*domain.GameState, error) {
	id, err := ParseSessionID(rawID)
	if err != nil {
		return nil, err
	}
	player, err := s.players.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &player.GameState, nil
}

// SweepStale deletes sessions not updated within olderThan
func (s *SpectatorService) SweepStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	n, err := s.players.DeleteStale(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.metrics.SessionsSwept.Add(float64(n))
		s.logger.Info("swept stale sessions", "deleted", n, "older_than", olderThan)
	}
	return n, nil
}

// ParseSessionID parses a positive session id, mapping anything else to
// domain.ErrSessionNotFound.
func ParseSessionID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrSessionNotFound
	}
	return id, nil
}

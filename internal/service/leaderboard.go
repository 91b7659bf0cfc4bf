package service

import (
	"context"
	"log/slog"

	"github.com/snake-lounge/internal/auth"
	"github.com/snake-lounge/internal/config"
	"github.com/snake-lounge/internal/domain"
	"github.com/snake-lounge/internal/metrics"
	"github.com/snake-lounge/internal/store"
)

// LeaderboardService provides business logic for leaderboard operations
type LeaderboardService struct {
	entries store.LeaderboardStore
	users   store.UserStore
	config  *config.LeaderboardConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	entries store.LeaderboardStore,
	users store.UserStore,
	cfg *config.LeaderboardConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		entries: entries,
		users:   users,
		config:  cfg,
		metrics: m,
		logger:  logger,
	}
}

// Submit records a score for the calling user under their current name
func (s *LeaderboardService) Submit(ctx context.Context, score int64, mode domain.Mode) (*domain.LeaderboardEntry, error) {
	id, err := auth.Require(ctx)
	if err != nil {
		return nil, err
	}
	user, err := currentUser(ctx, s.users, id)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, user, score, mode)
}

// SubmitFor records a score on behalf of userID, for trusted producers
// such as the event consumer.
func (s *LeaderboardService) SubmitFor(ctx context.Context, userID, score int64, mode domain.Mode) (*domain.LeaderboardEntry, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, user, score, mode)
}

func (s *LeaderboardService) submit(ctx context.Context, user *domain.User, score int64, mode domain.Mode) (*domain.LeaderboardEntry, error) {
	entry, err := s.entries.Submit(ctx, domain.ScoreSubmission{
		UserID:   user.ID,
		Username: user.Username,
		Score:    score,
		Mode:     mode,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ScoreSubmissions.WithLabelValues(string(mode)).Inc()
	s.logger.Debug("score submitted", "user_id", user.ID, "score", score, "mode", mode)
	return entry, nil
}

// List returns the top entries, optionally for one mode. A non-positive
// limit selects the default and larger ones are capped.
func (s *LeaderboardService) List(ctx context.Context, mode *domain.Mode, limit int) ([]domain.LeaderboardEntry, error) {
	return s.entries.List(ctx, domain.LeaderboardQuery{Mode: mode, Limit: s.clampLimit(limit)})
}

// Clear deletes every entry; any authenticated caller may do so.
func (s *LeaderboardService) Clear(ctx context.Context) (int64, error) {
	id, err := auth.Require(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.entries.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("leaderboard cleared", "user_id", id.UserID, "deleted", n)
	return n, nil
}

func (s *LeaderboardService) clampLimit(limit int) int {
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	return limit
}

// Package store defines the persistence contracts for accounts, leaderboard
// entries and active game sessions, plus in-memory implementations of each.
// The postgres and redis packages provide the durable variants.
package store

import (
	"context"
	"time"

	"github.com/snake-lounge/internal/domain"
)

// UserStore holds account records. Lookups are exact matches on the stored
// value; no case folding is applied.
type UserStore interface {
	// Create fails with domain.ErrUsernameTaken or domain.ErrEmailTaken.
	Create(ctx context.Context, u domain.NewUser) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// Delete removes the account and reports whether it existed.
	Delete(ctx context.Context, id int64) (bool, error)
}

// LeaderboardStore is an append-only collection of score entries.
type LeaderboardStore interface {
	Submit(ctx context.Context, s domain.ScoreSubmission) (*domain.LeaderboardEntry, error)
	// List returns entries ordered by score descending. Ties keep insertion
	// order in every implementation, but callers must not rely on it.
	List(ctx context.Context, q domain.LeaderboardQuery) ([]domain.LeaderboardEntry, error)
	Clear(ctx context.Context) (int64, error)
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}

// ActivePlayerStore tracks in-progress games for spectators. Every write
// replaces the whole snapshot; concurrent updates to one session are
// last-writer-wins.
type ActivePlayerStore interface {
	Create(ctx context.Context, p domain.NewActivePlayer) (*domain.ActivePlayer, error)
	// Update fails with domain.ErrSessionNotFound when id is unknown.
	Update(ctx context.Context, id int64, u domain.SessionUpdate) (*domain.ActivePlayer, error)
	// List orders sessions by last update, most recent first.
	List(ctx context.Context, mode *domain.Mode) ([]domain.ActivePlayer, error)
	Get(ctx context.Context, id int64) (*domain.ActivePlayer, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
	// DeleteStale removes sessions not updated since before.
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// NextUpdateTime returns now, or the smallest instant after prev when the
// clock has not moved past it. It keeps UpdatedAt strictly increasing per
// session.
func NextUpdateTime(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}

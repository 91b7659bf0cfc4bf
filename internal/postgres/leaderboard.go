package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/snake-lounge/internal/domain"
)

// LeaderboardStore implements store.LeaderboardStore on leaderboard_entries
type LeaderboardStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func (s *LeaderboardStore) Submit(ctx context.Context, sub domain.ScoreSubmission) (*domain.LeaderboardEntry, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO leaderboard_entries (user_id, username, score, mode)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, username, score, mode, created_at
	`
	var e domain.LeaderboardEntry
	err := s.pool.QueryRow(ctx, query, sub.UserID, sub.Username, sub.Score, string(sub.Mode)).
		Scan(&e.ID, &e.UserID, &e.Username, &e.Score, &e.Mode, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("submitting score: %w", err)
	}
	return &e, nil
}

// List breaks score ties by id, which is insertion order.
func (s *LeaderboardStore) List(ctx context.Context, q domain.LeaderboardQuery) ([]domain.LeaderboardEntry, error) {
	query := `SELECT id, user_id, username, score, mode, created_at FROM leaderboard_entries`
	args := []any{}
	if q.Mode != nil {
		args = append(args, string(*q.Mode))
		query += fmt.Sprintf(` WHERE mode = $%d`, len(args))
	}
	query += ` ORDER BY score DESC, id ASC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []domain.LeaderboardEntry{}
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.Score, &e.Mode, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing leaderboard: %w", err)
	}
	return entries, nil
}

func (s *LeaderboardStore) Clear(ctx context.Context) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM leaderboard_entries`)
	if err != nil {
		return 0, fmt.Errorf("clearing leaderboard: %w", err)
	}
	return result.RowsAffected(), nil
}

func (s *LeaderboardStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM leaderboard_entries WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting user entries: %w", err)
	}
	return result.RowsAffected(), nil
}

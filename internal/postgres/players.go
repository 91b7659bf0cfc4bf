package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/snake-lounge/internal/domain"
)

// ActivePlayerStore implements store.ActivePlayerStore on active_players.
// The snapshot lives in a JSONB column and is validated on the way in and
// on the way out.
type ActivePlayerStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

const playerColumns = `id, user_id, username, score, mode, game_state, created_at, updated_at`

func (s *ActivePlayerStore) Create(ctx context.Context, p domain.NewActivePlayer) (*domain.ActivePlayer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	state, err := domain.EncodeGameState(p.GameState)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO active_players (user_id, username, score, mode, game_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + playerColumns
	player, err := scanPlayer(s.pool.QueryRow(ctx, query,
		p.UserID, p.Username, p.Score, string(p.Mode), state, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return player, nil
}

// Update replaces score and snapshot in one statement, so concurrent
// updates of the same row serialize on its row lock.
func (s *ActivePlayerStore) Update(ctx context.Context, id int64, u domain.SessionUpdate) (*domain.ActivePlayer, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	state, err := domain.EncodeGameState(u.GameState)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE active_players
		SET score = $2,
			game_state = $3,
			updated_at = GREATEST($4, updated_at + interval '1 microsecond')
		WHERE id = $1
		RETURNING ` + playerColumns
	player, err := scanPlayer(s.pool.QueryRow(ctx, query, id, u.Score, state, time.Now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("updating session: %w", err)
	}
	return player, nil
}

func (s *ActivePlayerStore) List(ctx context.Context, mode *domain.Mode) ([]domain.ActivePlayer, error) {
	query := `SELECT ` + playerColumns + ` FROM active_players`
	args := []any{}
	if mode != nil {
		query += ` WHERE mode = $1`
		args = append(args, string(*mode))
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	players := []domain.ActivePlayer{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		players = append(players, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return players, nil
}

func (s *ActivePlayerStore) Get(ctx context.Context, id int64) (*domain.ActivePlayer, error) {
	query := `SELECT ` + playerColumns + ` FROM active_players WHERE id = $1`
	player, err := scanPlayer(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return player, nil
}

func (s *ActivePlayerStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM active_players WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (s *ActivePlayerStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM active_players WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting user sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

func (s *ActivePlayerStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM active_players WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("deleting stale sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanPlayer(row rowScanner) (*domain.ActivePlayer, error) {
	var (
		p     domain.ActivePlayer
		state []byte
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Username, &p.Score, &p.Mode, &state, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.GameState, err = domain.DecodeGameState(state)
	if err != nil {
		return nil, fmt.Errorf("decoding game_state of session %d: %w", p.ID, err)
	}
	return &p, nil
}

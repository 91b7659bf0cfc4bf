package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/snake-lounge/internal/domain"
)

// UserStore implements store.UserStore on the users table
type UserStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

const userColumns = `id, username, email, password_hash, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, u domain.NewUser) (*domain.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns
	user, err := scanUser(s.pool.QueryRow(ctx, query, u.Username, u.Email, u.PasswordHash))
	if err != nil {
		switch uniqueConstraint(err) {
		case "users_username_key":
			return nil, domain.ErrUsernameTaken
		case "users_email_key":
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func (s *UserStore) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// Delete removes the account; owned leaderboard entries and sessions go
// with it through ON DELETE CASCADE.
func (s *UserStore) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (s *UserStore) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

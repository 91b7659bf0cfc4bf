package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/snake-lounge/internal/config"
)

// Repository owns the PostgreSQL connection pool shared by the stores in
// this package
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks that the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Users returns the account store backed by this repository
func (r *Repository) Users() *UserStore {
	return &UserStore{pool: r.pool, logger: r.logger}
}

// Leaderboard returns the leaderboard store backed by this repository
func (r *Repository) Leaderboard() *LeaderboardStore {
	return &LeaderboardStore{pool: r.pool, logger: r.logger}
}

// ActivePlayers returns the session store backed by this repository
func (r *Repository) ActivePlayers() *ActivePlayerStore {
	return &ActivePlayerStore{pool: r.pool, logger: r.logger}
}

// migrations are applied in order on every start and must stay idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username VARCHAR(50) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT users_username_key UNIQUE (username),
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS leaderboard_entries (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		username VARCHAR(50) NOT NULL,
		score BIGINT NOT NULL CHECK (score >= 0),
		mode VARCHAR(20) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS active_players (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		username VARCHAR(50) NOT NULL,
		score BIGINT NOT NULL CHECK (score >= 0),
		mode VARCHAR(20) NOT NULL,
		game_state JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_mode_score ON leaderboard_entries(mode, score DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_leaderboard_score ON leaderboard_entries(score DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_active_players_updated ON active_players(updated_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_active_players_mode_updated ON active_players(mode, updated_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_active_players_user ON active_players(user_id)`,
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	for _, migration := range migrations {
		if _, err := r.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

const uniqueViolation = "23505"

// uniqueConstraint returns the violated constraint name for a unique
// violation, or "" for any other error.
func uniqueConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}

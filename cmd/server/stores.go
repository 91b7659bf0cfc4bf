package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/snake-lounge/internal/auth"
	"github.com/snake-lounge/internal/config"
	"github.com/snake-lounge/internal/postgres"
	"github.com/snake-lounge/internal/redis"
	"github.com/snake-lounge/internal/store"
)

// backends holds the store implementations selected by configuration
// together with the connections that must be closed on shutdown.
type backends struct {
	users       store.UserStore
	entries     store.LeaderboardStore
	players     store.ActivePlayerStore
	revocations auth.RevocationList

	postgres *postgres.Repository
	redis    *redis.Client
}

func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	needPostgres := cfg.Storage.Driver == config.DriverPostgres || cfg.Spectator.Store == config.DriverPostgres
	needRedis := cfg.Spectator.Store == config.DriverRedis || cfg.Auth.RevocationStore == config.DriverRedis

	if needPostgres {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err := postgres.NewRepository(ctx, &cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		b.postgres = repo
		if err := repo.RunMigrations(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("connected to PostgreSQL")
	}

	if needRedis {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		client, err := redis.NewClient(ctx, &cfg.Redis, logger)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		b.redis = client
		logger.Info("connected to Redis")
	}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		b.users = b.postgres.Users()
		b.entries = b.postgres.Leaderboard()
	default:
		b.users = store.NewMemoryUserStore()
		b.entries = store.NewMemoryLeaderboardStore()
	}

	switch cfg.Spectator.Store {
	case config.DriverPostgres:
		b.players = b.postgres.ActivePlayers()
	case config.DriverRedis:
		b.players = b.redis.ActivePlayers()
	default:
		b.players = store.NewMemoryActivePlayerStore()
	}

	switch cfg.Auth.RevocationStore {
	case config.DriverRedis:
		b.revocations = b.redis.Revocations()
	default:
		b.revocations = auth.NewMemoryRevocationList()
	}

	logger.Info("storage selected",
		"identity", cfg.Storage.Driver,
		"spectator", cfg.Spectator.Store,
		"revocations", cfg.Auth.RevocationStore,
	)
	return b, nil
}

// Close releases every open connection
func (b *backends) Close() {
	if b.redis != nil {
		b.redis.Close()
	}
	if b.postgres != nil {
		b.postgres.Close()
	}
}

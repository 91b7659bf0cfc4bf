package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/snake-lounge/internal/auth"
	"github.com/snake-lounge/internal/domain"
	"github.com/snake-lounge/internal/metrics"
	"github.com/snake-lounge/internal/store"
)

// Session is the result of a successful signup or login
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// IdentityService handles accounts and their tokens
type IdentityService struct {
	users       store.UserStore
	entries     store.LeaderboardStore
	players     store.ActivePlayerStore
	hasher      auth.PasswordHasher
	tokens      *auth.TokenIssuer
	revocations auth.RevocationList
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewIdentityService creates a new identity service
func NewIdentityService(
	users store.UserStore,
	entries store.LeaderboardStore,
	players store.ActivePlayerStore,
	hasher auth.PasswordHasher,
	tokens *auth.TokenIssuer,
	revocations auth.RevocationList,
	m *metrics.Metrics,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		users:       users,
		entries:     entries,
		players:     players,
		hasher:      hasher,
		tokens:      tokens,
		revocations: revocations,
		metrics:     m,
		logger:      logger,
	}
}

// Signup creates an account and signs a token for it. A taken username or
// email fails with domain.ErrConflict and creates nothing.
func (s *IdentityService) Signup(ctx context.Context, username, email, password string) (*Session, error) {
	switch {
	case strings.TrimSpace(username) == "":
		return nil, domain.NewValidationError("username", "required")
	case strings.TrimSpace(email) == "":
		return nil, domain.NewValidationError("email", "required")
	case password == "":
		return nil, domain.NewValidationError("password", "required")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(ctx, domain.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Signups.Inc()
	s.logger.Info("user signed up", "user_id", user.ID, "username", user.Username)
	return s.issue(user)
}

// Authenticate returns the account for email when password verifies.
// Unknown email and wrong password both yield domain.ErrInvalidCredentials.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and signs a fresh token
func (s *IdentityService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.metrics.Logins.WithLabelValues("failure").Inc()
		}
		return nil, err
	}
	s.metrics.Logins.WithLabelValues("success").Inc()
	return s.issue(user)
}

// Logout revokes the token of the calling request, if any. It never fails;
// a revocation that cannot be stored is logged.
func (s *IdentityService) Logout(ctx context.Context) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return
	}
	if err := s.revocations.Revoke(ctx, id.TokenID, id.ExpiresAt); err != nil {
		s.logger.Warn("failed to revoke token", "user_id", id.UserID, "error", err)
		return
	}
	s.logger.Info("user logged out", "user_id", id.UserID)
}

// Me returns the account of the calling request
func (s *IdentityService) Me(ctx context.Context) (*domain.User, error) {
	id, err := auth.Require(ctx)
	if err != nil {
		return nil, err
	}
	return currentUser(ctx, s.users, id)
}

// DeleteAccount removes a user together with their leaderboard entries and
// active sessions.
func (s *IdentityService) DeleteAccount(ctx context.Context, userID int64) (bool, error) {
	sessions, err := s.players.DeleteByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("deleting sessions: %w", err)
	}
	entries, err := s.entries.DeleteByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("deleting entries: %w", err)
	}
	existed, err := s.users.Delete(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}
	if existed {
		s.logger.Info("user deleted", "user_id", userID, "sessions", sessions, "entries", entries)
	}
	return existed, nil
}

func (s *IdentityService) issue(user *domain.User) (*Session, error) {
	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// currentUser loads the account behind id; a deleted account makes the
// caller unauthenticated.
func currentUser(ctx context.Context, users store.UserStore, id auth.Identity) (*domain.User, error) {
	user, err := users.FindByID(ctx, id.UserID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}

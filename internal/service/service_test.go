package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/snake-lounge/internal/auth"
	"github.com/snake-lounge/internal/config"
	"github.com/snake-lounge/internal/domain"
	"github.com/snake-lounge/internal/metrics"
	"github.com/snake-lounge/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	users       *store.MemoryUserStore
	entries     *store.MemoryLeaderboardStore
	players     *store.MemoryActivePlayerStore
	authn       *auth.Authenticator
	identity    *IdentityService
	leaderboard *LeaderboardService
	spectator   *SpectatorService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewNop()
	authCfg := &config.AuthConfig{Secret: "test", Issuer: "test", TokenTTL: time.Hour, CookieName: "snake_token"}
	lbCfg := &config.LeaderboardConfig{DefaultLimit: 20, MaxLimit: 100}

	f := &fixture{
		users:   store.NewMemoryUserStore(),
		entries: store.NewMemoryLeaderboardStore(),
		players: store.NewMemoryActivePlayerStore(),
	}
	tokens := auth.NewTokenIssuer(authCfg)
	revocations := auth.NewMemoryRevocationList()
	f.authn = auth.NewAuthenticator(tokens, revocations, f.users, authCfg, logger)
	f.identity = NewIdentityService(f.users, f.entries, f.players, auth.NewBcryptHasher(bcrypt.MinCost), tokens, revocations, m, logger)
	f.leaderboard = NewLeaderboardService(f.entries, f.users, lbCfg, m, logger)
	f.spectator = NewSpectatorService(f.players, f.users, m, logger)
	return f
}

// as resolves a session token the way the HTTP middleware does.
func (f *fixture) as(t *testing.T, s *Session) context.Context {
	t.Helper()
	id, err := f.authn.Resolve(context.Background(), s.Token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return auth.WithIdentity(context.Background(), id)
}

func state(score int64, cells int, mode domain.Mode) domain.GameState {
	snake := make([]domain.Position, cells)
	for i := range snake {
		snake[i] = domain.Position{X: 5, Y: 5 + i}
	}
	return domain.GameState{
		Snake:     snake,
		Food:      domain.Position{X: 1, Y: 1},
		Direction: domain.DirectionUp,
		Score:     score,
		Status:    domain.StatusPlaying,
		Mode:      mode,
		Speed:     150,
	}
}

func TestSignupLoginSubmitLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.identity.Signup(ctx, "alice", "a@x.com", "pw1"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	session, err := f.identity.Login(ctx, "a@x.com", "pw1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	userCtx := f.as(t, session)

	if _, err := f.leaderboard.Submit(userCtx, 1500, domain.ModeWalls); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	walls := domain.ModeWalls
	entries, err := f.leaderboard.List(ctx, &walls, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Username == "alice" && e.Score == 1500 {
			found = true
		}
	}
	if !found {
		t.Fatalf("entry missing from %+v", entries)
	}

	f.identity.Logout(userCtx)
	if _, err := f.authn.Resolve(ctx, session.Token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("token still valid after logout: %v", err)
	}
	if _, err := f.identity.Me(ctx); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("Me after logout: %v", err)
	}
}

func TestSignupConflictDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, err := f.identity.Signup(ctx, "alice", "a@x.com", "pw1")
	if err != nil {
		t.Fatal(err)
	}

	for _, in := range [][2]string{{"alice", "other@x.com"}, {"bob", "a@x.com"}} {
		if _, err := f.identity.Signup(ctx, in[0], in[1], "pw2"); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("Signup(%s, %s) = %v, want conflict", in[0], in[1], err)
		}
	}
	if _, err := f.users.FindByUsername(ctx, "bob"); !domain.IsNotFoundError(err) {
		t.Error("conflicting signup created bob")
	}
	// the original password still works
	if _, err := f.identity.Authenticate(ctx, "a@x.com", "pw1"); err != nil {
		t.Errorf("Authenticate: %v", err)
	}
	u, _ := f.users.FindByID(ctx, first.User.ID)
	if u.PasswordHash == "pw1" {
		t.Error("plaintext password stored")
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.identity.Signup(ctx, "alice", "a@x.com", "pw1")

	tests := []struct {
		email, password string
		ok              bool
	}{
		{"a@x.com", "pw1", true},
		{"a@x.com", "wrong", false},
		{"nobody@x.com", "pw1", false},
		{"A@X.COM", "pw1", false},
		{"", "", false},
	}
	for _, tt := range tests {
		user, err := f.identity.Authenticate(ctx, tt.email, tt.password)
		if tt.ok && (err != nil || user.Username != "alice") {
			t.Errorf("Authenticate(%q, %q) = %v, %v", tt.email, tt.password, user, err)
		}
		if !tt.ok && (user != nil || !errors.Is(err, domain.ErrInvalidCredentials)) {
			t.Errorf("Authenticate(%q, %q) = %v, %v; want invalid credentials", tt.email, tt.password, user, err)
		}
	}
}

func TestSignupRequiresFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.identity.Signup(context.Background(), " ", "a@x.com", "pw")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "username" {
		t.Fatalf("got %v", err)
	}
}

func TestUnauthenticatedWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.leaderboard.Submit(ctx, 10, domain.ModeWalls); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Submit: %v", err)
	}
	if _, err := f.leaderboard.Clear(ctx); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Clear: %v", err)
	}
	if _, err := f.spectator.Start(ctx, domain.ModeWalls, state(0, 3, domain.ModeWalls)); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Start: %v", err)
	}
	if _, err := f.identity.Me(ctx); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Me: %v", err)
	}
	// logout without a caller is a no-op
	f.identity.Logout(ctx)
}

func TestLeaderboardLimitClamp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s, _ := f.identity.Signup(ctx, "alice", "a@x.com", "pw")
	userCtx := f.as(t, s)
	for i := 0; i < 130; i++ {
		if _, err := f.leaderboard.Submit(userCtx, int64(i), domain.ModePassThrough); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct{ limit, want int }{{0, 20}, {-3, 20}, {5, 5}, {1000, 100}}
	for _, tt := range tests {
		got, _ := f.leaderboard.List(ctx, nil, tt.limit)
		if len(got) != tt.want {
			t.Errorf("List(limit=%d) len = %d, want %d", tt.limit, len(got), tt.want)
		}
	}

	n, err := f.leaderboard.Clear(userCtx)
	if err != nil || n != 130 {
		t.Errorf("Clear = %d, %v", n, err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s, _ := f.identity.Signup(ctx, "alice", "a@x.com", "pw")
	userCtx := f.as(t, s)

	player, err := f.spectator.Start(userCtx, domain.ModeWalls, state(0, 3, domain.ModeWalls))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if player.Username != "alice" || player.Score != 0 {
		t.Errorf("started = %+v", player)
	}

	next := state(50, 4, domain.ModeWalls)
	if _, err := f.spectator.Update(userCtx, player.ID, 50, next); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := f.spectator.PlayerState(ctx, formatID(player.ID))
	if err != nil {
		t.Fatalf("PlayerState: %v", err)
	}
	if got.Score != 50 || len(got.Snake) != 4 {
		t.Errorf("state = %+v", got)
	}

	// snapshot of the other mode is rejected without side effects
	_, err = f.spectator.Update(userCtx, player.ID, 60, state(60, 5, domain.ModePassThrough))
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "mode" {
		t.Fatalf("mode change: %v", err)
	}
	// diverging score is rejected
	if _, err := f.spectator.Update(userCtx, player.ID, 70, state(60, 5, domain.ModeWalls)); !errors.As(err, &verr) || verr.Field != "score" {
		t.Fatalf("score mismatch: %v", err)
	}
	cur, _ := f.spectator.Get(ctx, player.ID)
	if cur.Score != 50 {
		t.Errorf("rejected updates changed score to %d", cur.Score)
	}

	if _, err := f.spectator.Update(userCtx, player.ID+99, 1, state(1, 1, domain.ModeWalls)); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("unknown session: %v", err)
	}

	existed, _ := f.spectator.End(userCtx, player.ID)
	if !existed {
		t.Error("End reported missing session")
	}
	existed, _ = f.spectator.End(userCtx, player.ID)
	if existed {
		t.Error("second End reported existing session")
	}
	if _, err := f.spectator.PlayerState(ctx, formatID(player.ID)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("PlayerState after end: %v", err)
	}
}

func TestPlayerStateMalformedID(t *testing.T) {
	f := newFixture(t)
	for _, raw := range []string{"", "abc", "-1", "0", "1.5", "99999999999999999999"} {
		if _, err := f.spectator.PlayerState(context.Background(), raw); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("PlayerState(%q) = %v, want not found", raw, err)
		}
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice, _ := f.identity.Signup(ctx, "alice", "a@x.com", "pw")
	bob, _ := f.identity.Signup(ctx, "bob", "b@x.com", "pw")
	aliceCtx, bobCtx := f.as(t, alice), f.as(t, bob)

	f.leaderboard.Submit(aliceCtx, 10, domain.ModeWalls)
	f.leaderboard.Submit(bobCtx, 20, domain.ModeWalls)
	f.spectator.Start(aliceCtx, domain.ModeWalls, state(0, 3, domain.ModeWalls))
	f.spectator.Start(bobCtx, domain.ModeWalls, state(0, 3, domain.ModeWalls))

	existed, err := f.identity.DeleteAccount(ctx, alice.User.ID)
	if err != nil || !existed {
		t.Fatalf("DeleteAccount = %v, %v", existed, err)
	}

	entries, _ := f.leaderboard.List(ctx, nil, 0)
	players, _ := f.spectator.List(ctx, nil)
	for _, e := range entries {
		if e.UserID == alice.User.ID {
			t.Error("leaderboard entry survived its user")
		}
	}
	for _, p := range players {
		if p.UserID == alice.User.ID {
			t.Error("session survived its user")
		}
	}
	if len(entries) != 1 || len(players) != 1 {
		t.Errorf("bob's rows affected: %d entries, %d sessions", len(entries), len(players))
	}

	// the deleted user's token no longer authenticates
	if _, err := f.authn.Resolve(ctx, alice.Token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Resolve deleted user: %v", err)
	}
	if _, err := f.leaderboard.Submit(aliceCtx, 5, domain.ModeWalls); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Submit by deleted user: %v", err)
	}
}

func TestSweepStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s, _ := f.identity.Signup(ctx, "alice", "a@x.com", "pw")
	p, _ := f.spectator.Start(f.as(t, s), domain.ModeWalls, state(0, 3, domain.ModeWalls))

	n, _ := f.spectator.SweepStale(ctx, time.Hour)
	if n != 0 {
		t.Fatalf("fresh session swept")
	}
	n, _ = f.spectator.SweepStale(ctx, -time.Second)
	if n != 1 {
		t.Fatalf("SweepStale = %d, want 1", n)
	}
	if _, err := f.spectator.Get(ctx, p.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Error("swept session still present")
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

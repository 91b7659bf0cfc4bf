package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/snake-lounge/internal/config"
	"github.com/snake-lounge/internal/domain"
	"github.com/snake-lounge/internal/store"
	"golang.org/x/crypto/bcrypt"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		Secret:     "test-secret",
		Issuer:     "snake-test",
		TokenTTL:   time.Hour,
		CookieName: "snake_token",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequire(t *testing.T) {
	if _, err := Require(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("empty context: got %v", err)
	}
	ctx := WithIdentity(context.Background(), Identity{UserID: 7, Username: "alice"})
	id, err := Require(ctx)
	if err != nil || id.UserID != 7 {
		t.Fatalf("got %+v, %v", id, err)
	}
}

func TestTokenIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer(testAuthConfig())
	user := &domain.User{ID: 42, Username: "alice"}

	signed, claims, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parsed, err := issuer.Parse(signed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	uid, _ := parsed.UserID()
	if uid != 42 || parsed.Username != "alice" || parsed.ID != claims.ID {
		t.Errorf("parsed claims = %+v", parsed)
	}

	_, other, _ := issuer.Issue(user)
	if other.ID == claims.ID {
		t.Error("tokens share an id")
	}
}

func TestTokenParseRejects(t *testing.T) {
	cfg := testAuthConfig()
	issuer := NewTokenIssuer(cfg)
	user := &domain.User{ID: 1, Username: "bob"}
	good, _, _ := issuer.Issue(user)

	otherCfg := *cfg
	otherCfg.Secret = "another-secret"
	forged, _, _ := NewTokenIssuer(&otherCfg).Issue(user)

	expiredIssuer := NewTokenIssuer(cfg)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, _ := expiredIssuer.Issue(user)

	wrongIss := *cfg
	wrongIss.Issuer = "someone-else"
	foreign, _, _ := NewTokenIssuer(&wrongIss).Issue(user)

	tests := map[string]string{
		"garbage":        "not-a-token",
		"tampered":       good + "x",
		"wrong secret":   forged,
		"expired":        expired,
		"foreign issuer": foreign,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := issuer.Parse(token); !errors.Is(err, domain.ErrUnauthenticated) {
				t.Fatalf("got %v, want unauthenticated", err)
			}
		})
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "pw1" {
		t.Fatal("hash stores plaintext")
	}
	if !h.Verify(hash, "pw1") {
		t.Error("correct password rejected")
	}
	if h.Verify(hash, "pw2") {
		t.Error("wrong password accepted")
	}
}

func TestBcryptHasherRejectsLongPassword(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	if _, err := h.Hash(strings.Repeat("a", MaxPasswordBytes)); err != nil {
		t.Fatalf("Hash at the limit: %v", err)
	}
	_, err := h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "password" {
		t.Fatalf("expected password validation error, got %v", err)
	}
}

func TestMemoryRevocationList(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryRevocationList()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Revoke(ctx, "a", now.Add(time.Minute))
	if revoked, _ := l.IsRevoked(ctx, "a"); !revoked {
		t.Error("a should be revoked")
	}
	if revoked, _ := l.IsRevoked(ctx, "b"); revoked {
		t.Error("b was never revoked")
	}

	now = now.Add(2 * time.Minute)
	if revoked, _ := l.IsRevoked(ctx, "a"); revoked {
		t.Error("revocation should lapse with the token")
	}
	l.Revoke(ctx, "c", now.Add(time.Minute))
	if _, ok := l.revoked["a"]; ok {
		t.Error("expired entry not pruned")
	}
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	cfg := testAuthConfig()
	users := store.NewMemoryUserStore()
	alice, _ := users.Create(ctx, domain.NewUser{Username: "alice", Email: "a@x.com"})
	ghost, _ := users.Create(ctx, domain.NewUser{Username: "ghost", Email: "g@x.com"})

	issuer := NewTokenIssuer(cfg)
	revocations := NewMemoryRevocationList()
	a := NewAuthenticator(issuer, revocations, users, cfg, discardLogger())

	aliceToken, _, _ := issuer.Issue(alice)
	revokedToken, revokedClaims, _ := issuer.Issue(alice)
	revocations.Revoke(ctx, revokedClaims.ID, revokedClaims.ExpiresAt.Time)
	ghostToken, _, _ := issuer.Issue(ghost)
	users.Delete(ctx, ghost.ID)

	var seen *Identity
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = nil
		if id, ok := FromContext(r.Context()); ok {
			seen = &id
		}
	}))

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantUser string
	}{
		{"no token", func(r *http.Request) {}, ""},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+aliceToken) }, "alice"},
		{"lowercase bearer", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+aliceToken) }, "alice"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "snake_token", Value: aliceToken}) }, "alice"},
		{"revoked", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+revokedToken) }, ""},
		{"deleted user", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+ghostToken) }, ""},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			h.ServeHTTP(httptest.NewRecorder(), req)

			switch {
			case tt.wantUser == "" && seen != nil:
				t.Fatalf("expected anonymous request, got %+v", seen)
			case tt.wantUser != "" && (seen == nil || seen.Username != tt.wantUser):
				t.Fatalf("expected %s, got %+v", tt.wantUser, seen)
			}
		})
	}
}

func TestCookies(t *testing.T) {
	a := NewAuthenticator(nil, nil, nil, testAuthConfig(), discardLogger())

	rec := httptest.NewRecorder()
	a.SetCookie(rec, "tok", time.Now().Add(time.Hour))
	c := rec.Result().Cookies()
	if len(c) != 1 || c[0].Value != "tok" || !c[0].HttpOnly {
		t.Fatalf("set cookie = %+v", c)
	}

	rec = httptest.NewRecorder()
	a.ClearCookie(rec)
	c = rec.Result().Cookies()
	if len(c) != 1 || c[0].MaxAge >= 0 {
		t.Fatalf("clear cookie = %+v", c)
	}
}

package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/snake-lounge/internal/config"
	"github.com/snake-lounge/internal/domain"
)

// UserLookup resolves a token subject to a live account
type UserLookup interface {
	FindByID(ctx context.Context, id int64) (*domain.User, error)
}

// Authenticator resolves request tokens into identities
type Authenticator struct {
	tokens       *TokenIssuer
	revocations  RevocationList
	users        UserLookup
	cookieName   string
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthenticator creates a new Authenticator
func NewAuthenticator(
	tokens *TokenIssuer,
	revocations RevocationList,
	users UserLookup,
	cfg *config.AuthConfig,
	logger *slog.Logger,
) *Authenticator {
	return &Authenticator{
		tokens:       tokens,
		revocations:  revocations,
		users:        users,
		cookieName:   cfg.CookieName,
		cookieSecure: cfg.CookieSecure,
		logger:       logger,
	}
}

// Middleware attaches the caller's identity to the request context when a
// valid token is present. Requests without one pass through anonymously;
// handlers that need a caller use Require.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := a.TokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := a.Resolve(r.Context(), token)
		if err != nil {
			a.logger.Debug("ignoring request token", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Resolve verifies token and checks that it is unrevoked and that its user
// still exists.
func (a *Authenticator) Resolve(ctx context.Context, token string) (Identity, error) {
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	revoked, err := a.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Identity{}, err
	}
	if revoked {
		return Identity{}, domain.ErrUnauthenticated
	}
	userID, _ := claims.UserID()
	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return Identity{}, domain.ErrUnauthenticated
		}
		return Identity{}, err
	}
	return Identity{
		UserID:    user.ID,
		Username:  user.Username,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// TokenFromRequest reads a bearer token, falling back to the auth cookie.
func (a *Authenticator) TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(a.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// SetCookie stores token in an HttpOnly cookie expiring with the token.
func (a *Authenticator) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, a.cookie(token, expires, 0))
}

// ClearCookie removes the auth cookie.
func (a *Authenticator) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, a.cookie("", time.Time{}, -1))
}

func (a *Authenticator) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if a.cookieSecure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     a.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: sameSite,
		Expires:  expires,
		MaxAge:   maxAge,
	}
}

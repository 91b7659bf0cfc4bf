// Package auth carries the authenticated identity of a request. Identity
// is derived per request from a signed token and stored in the request
// context; there is no process-wide "current user".
package auth

import (
	"context"
	"time"

	"github.com/snake-lounge/internal/domain"
)

// Identity is the authenticated caller of a request
type Identity struct {
	UserID    int64
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity attached to ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Require returns the identity attached to ctx or domain.ErrUnauthenticated.
func Require(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, domain.ErrUnauthenticated
	}
	return id, nil
}

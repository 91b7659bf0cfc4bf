package redis

import (
	"context"
	"fmt"
	"time"
)

// RevocationList implements auth.RevocationList with expiring keys, so a
// revoked token id disappears once the token itself would have expired.
type RevocationList struct {
	client *Client
}

func (l *RevocationList) key(tokenID string) string {
	return l.client.key("revoked", tokenID)
}

func (l *RevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := l.client.rdb.Set(ctx, l.key(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

func (l *RevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.client.rdb.Exists(ctx, l.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("checking revocation: %w", err)
	}
	return n > 0, nil
}

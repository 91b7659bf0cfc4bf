package auth

import (
	"context"
	"sync"
	"time"
)

// RevocationList remembers logged-out token ids until they expire
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevocationList is a process-local RevocationList
type MemoryRevocationList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocationList creates an empty MemoryRevocationList
func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (l *MemoryRevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune()
	l.revoked[tokenID] = until
	return nil
}

func (l *MemoryRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.revoked[tokenID]
	return ok && l.now().Before(until), nil
}

// prune drops entries whose token would be rejected as expired anyway.
func (l *MemoryRevocationList) prune() {
	now := l.now()
	for id, until := range l.revoked {
		if !now.Before(until) {
			delete(l.revoked, id)
		}
	}
}

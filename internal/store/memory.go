package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/snake-lounge/internal/domain"
)

// MemoryUserStore is a map-backed UserStore. State is lost on restart.
type MemoryUserStore struct {
	mu         sync.RWMutex
	nextID     int64
	users      map[int64]*domain.User
	byEmail    map[string]int64
	byUsername map[string]int64
	now        func() time.Time
}

// NewMemoryUserStore creates an empty MemoryUserStore
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:      make(map[int64]*domain.User),
		byEmail:    make(map[string]int64),
		byUsername: make(map[string]int64),
		now:        time.Now,
	}
}

func (s *MemoryUserStore) Create(ctx context.Context, u domain.NewUser) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[u.Username]; ok {
		return nil, domain.ErrUsernameTaken
	}
	if _, ok := s.byEmail[u.Email]; ok {
		return nil, domain.ErrEmailTaken
	}

	s.nextID++
	now := s.now()
	user := &domain.User{
		ID:           s.nextID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	s.byUsername[user.Username] = user.ID

	c := *user
	return &c, nil
}

func (s *MemoryUserStore) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(id)
}

func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return s.lookup(id)
}

func (s *MemoryUserStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return s.lookup(id)
}

func (s *MemoryUserStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return false, nil
	}
	delete(s.users, id)
	delete(s.byEmail, user.Email)
	delete(s.byUsername, user.Username)
	return true, nil
}

// lookup must be called with s.mu held.
func (s *MemoryUserStore) lookup(id int64) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *user
	return &c, nil
}

// MemoryLeaderboardStore keeps entries in insertion order and sorts at read
// time.
type MemoryLeaderboardStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries []domain.LeaderboardEntry
	now     func() time.Time
}

// NewMemoryLeaderboardStore creates an empty MemoryLeaderboardStore
func NewMemoryLeaderboardStore() *MemoryLeaderboardStore {
	return &MemoryLeaderboardStore{now: time.Now}
}

func (s *MemoryLeaderboardStore) Submit(ctx context.Context, sub domain.ScoreSubmission) (*domain.LeaderboardEntry, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	entry := domain.LeaderboardEntry{
		ID:        s.nextID,
		UserID:    sub.UserID,
		Username:  sub.Username,
		Score:     sub.Score,
		Mode:      sub.Mode,
		CreatedAt: s.now(),
	}
	s.entries = append(s.entries, entry)
	return &entry, nil
}

func (s *MemoryLeaderboardStore) List(ctx context.Context, q domain.LeaderboardQuery) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	result := make([]domain.LeaderboardEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if q.Mode != nil && e.Mode != *q.Mode {
			continue
		}
		result = append(result, e)
	}
	s.mu.RUnlock()

	slices.SortStableFunc(result, func(a, b domain.LeaderboardEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func (s *MemoryLeaderboardStore) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.entries))
	s.entries = nil
	return n, nil
}

func (s *MemoryLeaderboardStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.entries)
	s.entries = slices.DeleteFunc(s.entries, func(e domain.LeaderboardEntry) bool {
		return e.UserID == userID
	})
	return int64(before - len(s.entries)), nil
}

// MemoryActivePlayerStore holds sessions in a map and sorts by recency at
// read time. The session count is expected to stay small.
type MemoryActivePlayerStore struct {
	mu       sync.RWMutex
	nextID   int64
	sessions map[int64]*domain.ActivePlayer
	now      func() time.Time
}

// NewMemoryActivePlayerStore creates an empty MemoryActivePlayerStore
func NewMemoryActivePlayerStore() *MemoryActivePlayerStore {
	return &MemoryActivePlayerStore{
		sessions: make(map[int64]*domain.ActivePlayer),
		now:      time.Now,
	}
}

func (s *MemoryActivePlayerStore) Create(ctx context.Context, p domain.NewActivePlayer) (*domain.ActivePlayer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := s.now()
	player := &domain.ActivePlayer{
		ID:        s.nextID,
		UserID:    p.UserID,
		Username:  p.Username,
		Score:     p.Score,
		Mode:      p.Mode,
		GameState: p.GameState.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[player.ID] = player

	c := player.Clone()
	return &c, nil
}

func (s *MemoryActivePlayerStore) Update(ctx context.Context, id int64, u domain.SessionUpdate) (*domain.ActivePlayer, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	// Cloned outside the lock; the swap below is the only mutation.
	state := u.GameState.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	updated := *player
	updated.Score = u.Score
	updated.GameState = state
	updated.UpdatedAt = NextUpdateTime(player.UpdatedAt, s.now())
	s.sessions[id] = &updated

	c := updated.Clone()
	return &c, nil
}

func (s *MemoryActivePlayerStore) List(ctx context.Context, mode *domain.Mode) ([]domain.ActivePlayer, error) {
	s.mu.RLock()
	result := make([]domain.ActivePlayer, 0, len(s.sessions))
	for _, p := range s.sessions {
		if mode != nil && p.Mode != *mode {
			continue
		}
		result = append(result, p.Clone())
	}
	s.mu.RUnlock()

	SortByRecency(result)
	return result, nil
}

func (s *MemoryActivePlayerStore) Get(ctx context.Context, id int64) (*domain.ActivePlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	c := player.Clone()
	return &c, nil
}

func (s *MemoryActivePlayerStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *MemoryActivePlayerStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	return s.deleteWhere(func(p *domain.ActivePlayer) bool { return p.UserID == userID }), nil
}

func (s *MemoryActivePlayerStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	return s.deleteWhere(func(p *domain.ActivePlayer) bool { return p.UpdatedAt.Before(before) }), nil
}

func (s *MemoryActivePlayerStore) deleteWhere(match func(*domain.ActivePlayer) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, p := range s.sessions {
		if match(p) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// SortByRecency orders sessions by UpdatedAt descending, newest id first on
// ties.
func SortByRecency(players []domain.ActivePlayer) {
	slices.SortFunc(players, func(a, b domain.ActivePlayer) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

package redis

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/snake-lounge/internal/domain"
)

func newMiniStore(t *testing.T) (*ActivePlayerStore, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return newClient(rdb, "snake", discardLogger()).ActivePlayers(), rdb
}

func snapshot(score int64, cells int, mode domain.Mode) domain.GameState {
	snake := make([]domain.Position, cells)
	for i := range snake {
		snake[i] = domain.Position{X: 3, Y: 3 + i}
	}
	return domain.GameState{
		Snake:     snake,
		Food:      domain.Position{X: 9, Y: 9},
		Direction: domain.DirectionDown,
		Score:     score,
		Status:    domain.StatusPlaying,
		Mode:      mode,
		Speed:     150,
	}
}

func startSession(t *testing.T, s *ActivePlayerStore, userID int64, mode domain.Mode) *domain.ActivePlayer {
	t.Helper()
	p, err := s.Create(context.Background(), domain.NewActivePlayer{
		UserID:    userID,
		Username:  "player",
		Score:     0,
		Mode:      mode,
		GameState: snapshot(0, 3, mode),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestStoreUpdateThenGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newMiniStore(t)
	p := startSession(t, s, 1, domain.ModeWalls)

	want := snapshot(10, 4, domain.ModeWalls)
	updated, err := s.Update(ctx, p.ID, domain.SessionUpdate{Score: 10, GameState: want})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.UpdatedAt.After(p.UpdatedAt) {
		t.Errorf("updated time %v did not advance past %v", updated.UpdatedAt, p.UpdatedAt)
	}

	got, err := s.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Score != 10 || !got.GameState.Equal(want) || got.Mode != domain.ModeWalls {
		t.Fatalf("stored = %+v", got)
	}
	if !got.UpdatedAt.Equal(updated.UpdatedAt) {
		t.Errorf("stored updated time %v, returned %v", got.UpdatedAt, updated.UpdatedAt)
	}

	_, err = s.Update(ctx, 999, domain.SessionUpdate{Score: 10, GameState: want})
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("update unknown session: %v", err)
	}
	if _, err := s.Get(ctx, 999); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("get unknown session: %v", err)
	}
}

func TestStoreListOrderAndModeFilter(t *testing.T) {
	ctx := context.Background()
	s, _ := newMiniStore(t)

	first := startSession(t, s, 1, domain.ModeWalls)
	time.Sleep(2 * time.Millisecond)
	second := startSession(t, s, 2, domain.ModePassThrough)
	time.Sleep(2 * time.Millisecond)
	third := startSession(t, s, 3, domain.ModeWalls)
	time.Sleep(2 * time.Millisecond)

	if _, err := s.Update(ctx, first.ID, domain.SessionUpdate{Score: 5, GameState: snapshot(5, 3, domain.ModeWalls)}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := s.List(ctx, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	wantOrder := []int64{first.ID, third.ID, second.ID}
	if len(all) != len(wantOrder) {
		t.Fatalf("List returned %d sessions", len(all))
	}
	for i, id := range wantOrder {
		if all[i].ID != id {
			t.Fatalf("order = %v, want %v", ids(all), wantOrder)
		}
	}

	walls := domain.ModeWalls
	filtered, err := s.List(ctx, &walls)
	if err != nil {
		t.Fatalf("List(walls): %v", err)
	}
	if got := ids(filtered); len(got) != 2 || got[0] != first.ID || got[1] != third.ID {
		t.Fatalf("walls = %v", got)
	}

	passThrough := domain.ModePassThrough
	filtered, err = s.List(ctx, &passThrough)
	if err != nil {
		t.Fatalf("List(pass-through): %v", err)
	}
	if got := ids(filtered); len(got) != 1 || got[0] != second.ID {
		t.Fatalf("pass-through = %v", got)
	}
}

func TestStoreDeleteRemovesIndexes(t *testing.T) {
	ctx := context.Background()
	s, rdb := newMiniStore(t)
	p := startSession(t, s, 7, domain.ModeWalls)

	for i, want := range []bool{true, false} {
		existed, err := s.Delete(ctx, p.ID)
		if err != nil {
			t.Fatalf("Delete #%d: %v", i+1, err)
		}
		if existed != want {
			t.Fatalf("Delete #%d = %v, want %v", i+1, existed, want)
		}
	}

	member := strconv.FormatInt(p.ID, 10)
	for _, key := range []string{s.recentKey(), s.modeKey(domain.ModeWalls)} {
		if err := rdb.ZScore(ctx, key, member).Err(); !errors.Is(err, goredis.Nil) {
			t.Errorf("%s still holds the session: %v", key, err)
		}
	}
	if ok, err := rdb.SIsMember(ctx, s.userKey(7), member).Result(); err != nil || ok {
		t.Errorf("user index still holds the session: %v %v", ok, err)
	}
	if n, err := rdb.Exists(ctx, s.sessionKey(p.ID)).Result(); err != nil || n != 0 {
		t.Errorf("session key still exists: %d %v", n, err)
	}

	all, err := s.List(ctx, nil)
	if err != nil || len(all) != 0 {
		t.Fatalf("List after delete = %v, %v", ids(all), err)
	}
}

func TestStoreDeleteByUser(t *testing.T) {
	ctx := context.Background()
	s, _ := newMiniStore(t)
	startSession(t, s, 1, domain.ModeWalls)
	startSession(t, s, 1, domain.ModePassThrough)
	keep := startSession(t, s, 2, domain.ModeWalls)

	n, err := s.DeleteByUser(ctx, 1)
	if err != nil || n != 2 {
		t.Fatalf("DeleteByUser = %d, %v", n, err)
	}
	all, err := s.List(ctx, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := ids(all); len(got) != 1 || got[0] != keep.ID {
		t.Fatalf("remaining = %v", got)
	}
}

func TestStoreDeleteStaleBoundIsExclusive(t *testing.T) {
	ctx := context.Background()
	s, _ := newMiniStore(t)
	p := startSession(t, s, 1, domain.ModeWalls)

	n, err := s.DeleteStale(ctx, p.UpdatedAt)
	if err != nil || n != 0 {
		t.Fatalf("DeleteStale(at updated time) = %d, %v", n, err)
	}
	if _, err := s.Get(ctx, p.ID); err != nil {
		t.Fatalf("session swept at its own update time: %v", err)
	}

	n, err = s.DeleteStale(ctx, p.UpdatedAt.Add(time.Microsecond))
	if err != nil || n != 1 {
		t.Fatalf("DeleteStale(after updated time) = %d, %v", n, err)
	}
	if _, err := s.Get(ctx, p.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("stale session survived: %v", err)
	}
}

func TestStoreConcurrentSameSessionLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s, _ := newMiniStore(t)
	p := startSession(t, s, 1, domain.ModeWalls)

	// fewer writers than retries, so every writer eventually commits
	const writers = 8
	submitted := make([]domain.GameState, writers)
	for i := range submitted {
		submitted[i] = snapshot(int64(i*10), 3+i, domain.ModeWalls)
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := submitted[i]
			if _, err := s.Update(ctx, p.ID, domain.SessionUpdate{Score: st.Score, GameState: st}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Update: %v", err)
	}

	got, err := s.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	matches := 0
	for _, st := range submitted {
		if got.GameState.Equal(st) && got.Score == st.Score {
			matches++
		}
	}
	if matches != 1 {
		t.Fatalf("stored snapshot matches %d submitted snapshots: %+v", matches, got.GameState)
	}
	if !got.UpdatedAt.After(p.UpdatedAt) {
		t.Errorf("updated time did not advance")
	}
}

func ids(players []domain.ActivePlayer) []int64 {
	out := make([]int64, len(players))
	for i, p := range players {
		out[i] = p.ID
	}
	return out
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/snake-lounge/internal/domain"
	"github.com/snake-lounge/internal/store"
)

// maxTxRetries bounds optimistic retries when a watched session changes
// between read and write.
const maxTxRetries = 16

// ActivePlayerStore implements store.ActivePlayerStore in Redis.
//
// Each session is a JSON string. Recency is kept in sorted sets scored by
// updated time in microseconds, one for all sessions and one per mode; a
// set per user supports cascading deletes.
type ActivePlayerStore struct {
	client *Client
	logger *slog.Logger
}

// sessionRecord is the stored form of a session
type sessionRecord struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Username  string          `json:"username"`
	Score     int64           `json:"score"`
	Mode      domain.Mode     `json:"mode"`
	GameState json.RawMessage `json:"game_state"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (s *ActivePlayerStore) seqKey() string {
	return s.client.key("spectator", "seq")
}

func (s *ActivePlayerStore) sessionKey(id int64) string {
	return s.client.key("spectator", "session", strconv.FormatInt(id, 10))
}

func (s *ActivePlayerStore) recentKey() string {
	return s.client.key("spectator", "recent")
}

func (s *ActivePlayerStore) modeKey(mode domain.Mode) string {
	return s.client.key("spectator", "recent", string(mode))
}

func (s *ActivePlayerStore) userKey(userID int64) string {
	return s.client.key("spectator", "user", strconv.FormatInt(userID, 10))
}

func (s *ActivePlayerStore) Create(ctx context.Context, p domain.NewActivePlayer) (*domain.ActivePlayer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rdb := s.client.rdb

	id, err := rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("allocating session id: %w", err)
	}

	now := time.Now().Truncate(time.Microsecond)
	player := &domain.ActivePlayer{
		ID:        id,
		UserID:    p.UserID,
		Username:  p.Username,
		Score:     p.Score,
		Mode:      p.Mode,
		GameState: p.GameState.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := encodeRecord(player)
	if err != nil {
		return nil, err
	}

	_, err = rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(id), data, 0)
		z := redis.Z{Score: recencyScore(now), Member: id}
		pipe.ZAdd(ctx, s.recentKey(), z)
		pipe.ZAdd(ctx, s.modeKey(p.Mode), z)
		pipe.SAdd(ctx, s.userKey(p.UserID), id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return player, nil
}

// Update swaps the session record under WATCH, so a concurrent writer
// forces a retry instead of an interleaved write.
func (s *ActivePlayerStore) Update(ctx context.Context, id int64, u domain.SessionUpdate) (*domain.ActivePlayer, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	key := s.sessionKey(id)

	var updated *domain.ActivePlayer
	txf := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		next := *current
		next.Score = u.Score
		next.GameState = u.GameState.Clone()
		next.UpdatedAt = nextRecency(current.UpdatedAt, time.Now())

		data, err := encodeRecord(&next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			z := redis.Z{Score: recencyScore(next.UpdatedAt), Member: id}
			pipe.ZAdd(ctx, s.recentKey(), z)
			pipe.ZAdd(ctx, s.modeKey(next.Mode), z)
			return nil
		})
		if err == nil {
			updated = &next
		}
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("updating session: %w", err)
	}
	return updated, nil
}

func (s *ActivePlayerStore) List(ctx context.Context, mode *domain.Mode) ([]domain.ActivePlayer, error) {
	rdb := s.client.rdb
	index := s.recentKey()
	if mode != nil {
		index = s.modeKey(*mode)
	}

	ids, err := rdb.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	players := []domain.ActivePlayer{}
	if len(ids) == 0 {
		return players, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing session id %q: %w", id, err)
		}
		keys[i] = s.sessionKey(n)
	}
	values, err := rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// deleted between ZREVRANGE and MGET
			continue
		}
		p, err := decodeRecord([]byte(raw))
		if err != nil {
			s.logger.Warn("skipping undecodable session", "key", keys[i], "error", err)
			continue
		}
		players = append(players, *p)
	}
	store.SortByRecency(players)
	return players, nil
}

func (s *ActivePlayerStore) Get(ctx context.Context, id int64) (*domain.ActivePlayer, error) {
	return s.read(ctx, s.client.rdb, id)
}

func (s *ActivePlayerStore) Delete(ctx context.Context, id int64) (bool, error) {
	key := s.sessionKey(id)
	existed := false

	txf := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var del *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			del = pipe.Del(ctx, key)
			pipe.ZRem(ctx, s.recentKey(), id)
			pipe.ZRem(ctx, s.modeKey(current.Mode), id)
			pipe.SRem(ctx, s.userKey(current.UserID), id)
			return nil
		})
		if err == nil {
			existed = del.Val() > 0
		}
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	return existed, nil
}

func (s *ActivePlayerStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	ids, err := s.client.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("listing user sessions: %w", err)
	}
	n, err := s.deleteIDs(ctx, ids)
	if err != nil {
		return n, err
	}
	if err := s.client.rdb.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return n, fmt.Errorf("deleting user index: %w", err)
	}
	return n, nil
}

func (s *ActivePlayerStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.rdb.ZRangeByScore(ctx, s.recentKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatFloat(recencyScore(before), 'f', -1, 64),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("finding stale sessions: %w", err)
	}
	return s.deleteIDs(ctx, ids)
}

func (s *ActivePlayerStore) deleteIDs(ctx context.Context, ids []string) (int64, error) {
	var n int64
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return n, fmt.Errorf("parsing session id %q: %w", raw, err)
		}
		existed, err := s.Delete(ctx, id)
		if err != nil {
			return n, err
		}
		if existed {
			n++
		}
	}
	return n, nil
}

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// read loads one session through c, which is the client or a WATCH tx.
func (s *ActivePlayerStore) read(ctx context.Context, c getter, id int64) (*domain.ActivePlayer, error) {
	raw, err := c.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return decodeRecord(raw)
}

func (s *ActivePlayerStore) watch(ctx context.Context, txf func(*redis.Tx) error, key string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.Debug("session changed during transaction, retrying", "key", key, "attempt", i+1)
	}
	return fmt.Errorf("%s: %w", key, redis.TxFailedErr)
}

func encodeRecord(p *domain.ActivePlayer) ([]byte, error) {
	state, err := domain.EncodeGameState(p.GameState)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sessionRecord{
		ID:        p.ID,
		UserID:    p.UserID,
		Username:  p.Username,
		Score:     p.Score,
		Mode:      p.Mode,
		GameState: state,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
}

func decodeRecord(data []byte) (*domain.ActivePlayer, error) {
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	state, err := domain.DecodeGameState(rec.GameState)
	if err != nil {
		return nil, fmt.Errorf("decoding session %d: %w", rec.ID, err)
	}
	return &domain.ActivePlayer{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Username:  rec.Username,
		Score:     rec.Score,
		Mode:      rec.Mode,
		GameState: state,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// recencyScore keeps microsecond precision, which still fits a float64
// mantissa exactly.
func recencyScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

// nextRecency is store.NextUpdateTime at the microsecond resolution of the
// sorted-set score.
func nextRecency(prev, now time.Time) time.Time {
	now = now.Truncate(time.Microsecond)
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}

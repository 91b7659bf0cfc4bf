package domain

import "time"

// ActivePlayer is one in-progress game being tracked for spectators.
// Score and GameState.Score are kept equal by every write.
type ActivePlayer struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Score     int64     `json:"score"`
	Mode      Mode      `json:"mode"`
	GameState GameState `json:"game_state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that shares no memory with p.
func (p ActivePlayer) Clone() ActivePlayer {
	c := p
	c.GameState = p.GameState.Clone()
	return c
}

// NewActivePlayer holds the fields of a session being started
type NewActivePlayer struct {
	UserID    int64
	Username  string
	Score     int64
	Mode      Mode
	GameState GameState
}

// Validate checks the session against its snapshot.
func (n NewActivePlayer) Validate() error {
	if err := n.GameState.Validate(); err != nil {
		return err
	}
	if n.Score != n.GameState.Score {
		return NewValidationError("score", "must equal gameState.score (%d != %d)", n.Score, n.GameState.Score)
	}
	if n.Mode != n.GameState.Mode {
		return NewValidationError("mode", "must equal gameState.mode (%s != %s)", n.Mode, n.GameState.Mode)
	}
	return nil
}

// SessionUpdate replaces the score and snapshot of a session
type SessionUpdate struct {
	Score     int64
	GameState GameState
}

// Validate checks the score/snapshot lockstep.
func (u SessionUpdate) Validate() error {
	if err := u.GameState.Validate(); err != nil {
		return err
	}
	if u.Score != u.GameState.Score {
		return NewValidationError("score", "must equal gameState.score (%d != %d)", u.Score, u.GameState.Score)
	}
	return nil
}

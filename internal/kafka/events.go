package kafka

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/snake-lounge/internal/domain"
)

// EventType discriminates the messages on the events topic
type EventType string

const (
	// EventSnapshot replaces the snapshot of a running session
	EventSnapshot EventType = "snapshot"
	// EventScore records a finished game for a user
	EventScore EventType = "score"
)

// Event is the message format for Kafka
type Event struct {
	Type      EventType         `json:"type"`
	SessionID int64             `json:"session_id,omitempty"`
	GameState *domain.GameState `json:"game_state,omitempty"`
	UserID    int64             `json:"user_id,omitempty"`
	Score     *int64            `json:"score,omitempty"`
	Mode      domain.Mode       `json:"mode,omitempty"`
}

// SnapshotEvent builds a snapshot event for a session
func SnapshotEvent(sessionID int64, state domain.GameState) Event {
	return Event{Type: EventSnapshot, SessionID: sessionID, GameState: &state}
}

// ScoreEvent builds a score event for a user
func ScoreEvent(userID, score int64, mode domain.Mode) Event {
	return Event{Type: EventScore, UserID: userID, Score: &score, Mode: mode}
}

// DecodeEvent parses a message value and checks the fields its type needs.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return Event{}, verr
		}
		return Event{}, fmt.Errorf("decoding event: %w", domain.ErrInvalidRequest)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Validate checks the fields required by the event type.
func (e Event) Validate() error {
	switch e.Type {
	case EventSnapshot:
		if e.SessionID <= 0 {
			return domain.NewValidationError("session_id", "must be positive")
		}
		if e.GameState == nil {
			return domain.NewValidationError("game_state", "required")
		}
	case EventScore:
		if e.UserID <= 0 {
			return domain.NewValidationError("user_id", "must be positive")
		}
		if e.Score == nil {
			return domain.NewValidationError("score", "required")
		}
		sub := domain.ScoreSubmission{UserID: e.UserID, Score: *e.Score, Mode: e.Mode}
		return sub.Validate()
	default:
		return domain.NewValidationError("type", "unknown value %q", e.Type)
	}
	return nil
}

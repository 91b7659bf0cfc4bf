package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Mode is the ruleset variant a game is played with
type Mode string

const (
	ModePassThrough Mode = "pass-through"
	ModeWalls       Mode = "walls"
)

// Modes lists every supported mode.
func Modes() []Mode {
	return []Mode{ModePassThrough, ModeWalls}
}

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePassThrough, ModeWalls:
		return m, nil
	}
	return "", NewValidationError("mode", "unknown value %q", s)
}

// UnmarshalText rejects unknown modes wherever a Mode is decoded.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Direction is the heading of the snake head
type Direction string

const (
	DirectionUp    Direction = "UP"
	DirectionDown  Direction = "DOWN"
	DirectionLeft  Direction = "LEFT"
	DirectionRight Direction = "RIGHT"
)

// ParseDirection validates s as a Direction.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return d, nil
	}
	return "", NewValidationError("direction", "unknown value %q", s)
}

// Status is the lifecycle state of a game
type Status string

const (
	StatusIdle     Status = "idle"
	StatusPlaying  Status = "playing"
	StatusPaused   Status = "paused"
	StatusGameOver Status = "game-over"
)

// ParseStatus validates s as a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusIdle, StatusPlaying, StatusPaused, StatusGameOver:
		return st, nil
	}
	return "", NewValidationError("status", "unknown value %q", s)
}

// Position is a grid cell
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// GameState is the full board snapshot of one game tick. It is always
// replaced as a whole, never merged field by field.
type GameState struct {
	Snake     []Position `json:"snake"`
	Food      Position   `json:"food"`
	Direction Direction  `json:"direction"`
	Score     int64      `json:"score"`
	Status    Status     `json:"status"`
	Mode      Mode       `json:"mode"`
	Speed     int        `json:"speed"`
}

// Validate checks the enumerations and numeric bounds of the snapshot.
func (g GameState) Validate() error {
	if g.Snake == nil {
		return NewValidationError("snake", "required")
	}
	if _, err := ParseDirection(string(g.Direction)); err != nil {
		return err
	}
	if _, err := ParseStatus(string(g.Status)); err != nil {
		return err
	}
	if _, err := ParseMode(string(g.Mode)); err != nil {
		return err
	}
	if g.Score < 0 {
		return NewValidationError("score", "must be non-negative, got %d", g.Score)
	}
	if g.Speed <= 0 {
		return NewValidationError("speed", "must be positive, got %d", g.Speed)
	}
	return nil
}

// Clone returns a deep copy so stored snapshots never alias caller memory.
func (g GameState) Clone() GameState {
	c := g
	if g.Snake != nil {
		c.Snake = make([]Position, len(g.Snake))
		copy(c.Snake, g.Snake)
	}
	return c
}

// Equal reports whether two snapshots are identical cell for cell.
func (g GameState) Equal(o GameState) bool {
	if len(g.Snake) != len(o.Snake) || (g.Snake == nil) != (o.Snake == nil) {
		return false
	}
	for i := range g.Snake {
		if g.Snake[i] != o.Snake[i] {
			return false
		}
	}
	return g.Food == o.Food &&
		g.Direction == o.Direction &&
		g.Score == o.Score &&
		g.Status == o.Status &&
		g.Mode == o.Mode &&
		g.Speed == o.Speed
}

type wirePosition struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

type wireGameState struct {
	Snake     *[]wirePosition `json:"snake"`
	Food      *wirePosition   `json:"food"`
	Direction *string         `json:"direction"`
	Score     *int64          `json:"score"`
	Status    *string         `json:"status"`
	Mode      *string         `json:"mode"`
	Speed     *int            `json:"speed"`
}

// DecodeGameState parses and validates a serialized snapshot. Every field is
// required; a failure is reported as a *ValidationError naming the field.
func DecodeGameState(data []byte) (GameState, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return GameState{}, NewValidationError("gameState", "required")
	}

	var w wireGameState
	if err := json.Unmarshal(data, &w); err != nil {
		return GameState{}, decodeError(err)
	}

	var g GameState
	switch {
	case w.Snake == nil:
		return GameState{}, NewValidationError("snake", "required")
	case w.Food == nil:
		return GameState{}, NewValidationError("food", "required")
	case w.Direction == nil:
		return GameState{}, NewValidationError("direction", "required")
	case w.Score == nil:
		return GameState{}, NewValidationError("score", "required")
	case w.Status == nil:
		return GameState{}, NewValidationError("status", "required")
	case w.Mode == nil:
		return GameState{}, NewValidationError("mode", "required")
	case w.Speed == nil:
		return GameState{}, NewValidationError("speed", "required")
	}

	g.Snake = make([]Position, 0, len(*w.Snake))
	for _, cell := range *w.Snake {
		p, ok := cell.position()
		if !ok {
			return GameState{}, NewValidationError("snake", "cells must have integer x and y")
		}
		g.Snake = append(g.Snake, p)
	}
	food, ok := w.Food.position()
	if !ok {
		return GameState{}, NewValidationError("food", "must have integer x and y")
	}
	g.Food = food
	g.Direction = Direction(*w.Direction)
	g.Score = *w.Score
	g.Status = Status(*w.Status)
	g.Mode = Mode(*w.Mode)
	g.Speed = *w.Speed

	if err := g.Validate(); err != nil {
		return GameState{}, err
	}
	return g, nil
}

// EncodeGameState serializes a valid snapshot.
func EncodeGameState(g GameState) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(g)
}

// UnmarshalJSON routes every embedded snapshot through DecodeGameState.
func (g *GameState) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeGameState(data)
	if err != nil {
		return err
	}
	*g = decoded
	return nil
}

func (p *wirePosition) position() (Position, bool) {
	if p == nil || p.X == nil || p.Y == nil {
		return Position{}, false
	}
	return Position{X: *p.X, Y: *p.Y}, true
}

// decodeError maps a json failure to the top-level field it occurred in.
func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		field, _, _ := strings.Cut(typeErr.Field, ".")
		return NewValidationError(field, "expected %s, got %s", typeErr.Type, typeErr.Value)
	}
	return NewValidationError("gameState", "malformed: %v", err)
}

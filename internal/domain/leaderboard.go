package domain

import "time"

// LeaderboardEntry is an immutable score record. Username is the name the
// player had when the score was submitted, not their current one.
type LeaderboardEntry struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Score     int64     `json:"score"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoreSubmission represents a request to submit a score
type ScoreSubmission struct {
	UserID   int64
	Username string
	Score    int64
	Mode     Mode
}

// Validate checks the submission bounds.
func (s ScoreSubmission) Validate() error {
	if s.Score < 0 {
		return NewValidationError("score", "must be non-negative, got %d", s.Score)
	}
	if _, err := ParseMode(string(s.Mode)); err != nil {
		return err
	}
	return nil
}

// LeaderboardQuery filters a leaderboard listing. A nil Mode means all modes.
type LeaderboardQuery struct {
	Mode  *Mode
	Limit int
}

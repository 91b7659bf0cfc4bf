package handler

import (
	"net/http"
	"strconv"

	"github.com/snake-lounge/internal/auth"
	"github.com/snake-lounge/internal/domain"
)

type submitScoreRequest struct {
	Score *int64 `json:"score" validate:"required,min=0"`
	Mode  string `json:"mode" validate:"required,oneof=pass-through walls"`
}

// leaderboardEntryView is the public shape of an entry
type leaderboardEntryView struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	Score    int64       `json:"score"`
	Mode     domain.Mode `json:"mode"`
	Date     string      `json:"date"`
}

func newLeaderboardEntryView(e domain.LeaderboardEntry) leaderboardEntryView {
	return leaderboardEntryView{
		ID:       e.ID,
		Username: e.Username,
		Score:    e.Score,
		Mode:     e.Mode,
		Date:     e.CreatedAt.Format("2006-01-02"),
	}
}

// ListLeaderboard returns top scores, optionally filtered by ?mode= and
// capped by ?limit=
func (h *Handler) ListLeaderboard(w http.ResponseWriter, r *http.Request) {
	mode, err := modeParam(r)
	if err != nil {
		h.writeServiceError(w, "list leaderboard", err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			h.writeServiceError(w, "list leaderboard", domain.NewValidationError("limit", "must be an integer"))
			return
		}
	}

	entries, err := h.leaderboard.List(r.Context(), mode, limit)
	if err != nil {
		h.writeServiceError(w, "list leaderboard", err)
		return
	}
	views := make([]leaderboardEntryView, len(entries))
	for i, e := range entries {
		views[i] = newLeaderboardEntryView(e)
	}
	h.writeSuccess(w, views)
}

// SubmitScore records a finished game for the caller. The envelope's
// success flag is the result; data carries the stored entry.
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.Require(r.Context()); err != nil {
		h.writeServiceError(w, "submit score", err)
		return
	}
	var req submitScoreRequest
	if err := h.decode(r, &req); err != nil {
		h.writeServiceError(w, "submit score", err)
		return
	}

	entry, err := h.leaderboard.Submit(r.Context(), *req.Score, domain.Mode(req.Mode))
	if err != nil {
		h.writeServiceError(w, "submit score", err)
		return
	}
	h.writeSuccess(w, newLeaderboardEntryView(*entry))
}

// ClearLeaderboard deletes every entry
func (h *Handler) ClearLeaderboard(w http.ResponseWriter, r *http.Request) {
	n, err := h.leaderboard.Clear(r.Context())
	if err != nil {
		h.writeServiceError(w, "clear leaderboard", err)
		return
	}
	h.writeSuccess(w, map[string]int64{"deleted": n})
}

// modeParam parses the optional ?mode= filter
func modeParam(r *http.Request) (*domain.Mode, error) {
	raw := r.URL.Query().Get("mode")
	if raw == "" {
		return nil, nil
	}
	mode, err := domain.ParseMode(raw)
	if err != nil {
		return nil, err
	}
	return &mode, nil
}

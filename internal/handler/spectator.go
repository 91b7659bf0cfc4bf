package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/snake-lounge/internal/auth"
	"github.com/snake-lounge/internal/domain"
	"github.com/snake-lounge/internal/service"
)

type startSessionRequest struct {
	Mode      string            `json:"mode" validate:"required,oneof=pass-through walls"`
	GameState *domain.GameState `json:"gameState" validate:"required"`
}

type updateSessionRequest struct {
	Score     *int64            `json:"score" validate:"required,min=0"`
	GameState *domain.GameState `json:"gameState" validate:"required"`
}

// activePlayerView is the public shape of a session
type activePlayerView struct {
	ID        int64            `json:"id"`
	Username  string           `json:"username"`
	Score     int64            `json:"score"`
	Mode      domain.Mode      `json:"mode"`
	GameState domain.GameState `json:"gameState"`
}

func newActivePlayerView(p domain.ActivePlayer) activePlayerView {
	return activePlayerView{
		ID:        p.ID,
		Username:  p.Username,
		Score:     p.Score,
		Mode:      p.Mode,
		GameState: p.GameState,
	}
}

// ListActivePlayers returns sessions, most recently updated first
func (h *Handler) ListActivePlayers(w http.ResponseWriter, r *http.Request) {
	mode, err := modeParam(r)
	if err != nil {
		h.writeServiceError(w, "list active players", err)
		return
	}
	players, err := h.spectator.List(r.Context(), mode)
	if err != nil {
		h.writeServiceError(w, "list active players", err)
		return
	}
	views := make([]activePlayerView, len(players))
	for i, p := range players {
		views[i] = newActivePlayerView(p)
	}
	h.writeSuccess(w, views)
}

// GetPlayerState returns the snapshot of one session
func (h *Handler) GetPlayerState(w http.ResponseWriter, r *http.Request) {
	state, err := h.spectator.PlayerState(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		h.writeServiceError(w, "get player state", err)
		return
	}
	h.writeSuccess(w, state)
}

// StartSession begins tracking a game for the caller
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.Require(r.Context()); err != nil {
		h.writeServiceError(w, "start session", err)
		return
	}
	var req startSessionRequest
	if err := h.decode(r, &req); err != nil {
		h.writeServiceError(w, "start session", err)
		return
	}
	player, err := h.spectator.Start(r.Context(), domain.Mode(req.Mode), *req.GameState)
	if err != nil {
		h.writeServiceError(w, "start session", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: newActivePlayerView(*player)})
}

// UpdateSession replaces the score and snapshot of a session
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.Require(r.Context()); err != nil {
		h.writeServiceError(w, "update session", err)
		return
	}
	id, err := service.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeServiceError(w, "update session", err)
		return
	}
	var req updateSessionRequest
	if err := h.decode(r, &req); err != nil {
		h.writeServiceError(w, "update session", err)
		return
	}
	player, err := h.spectator.Update(r.Context(), id, *req.Score, *req.GameState)
	if err != nil {
		h.writeServiceError(w, "update session", err)
		return
	}
	h.writeSuccess(w, newActivePlayerView(*player))
}

// EndSession deletes a session
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.Require(r.Context()); err != nil {
		h.writeServiceError(w, "end session", err)
		return
	}
	id, err := service.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		// nothing can be stored under a malformed id
		h.writeSuccess(w, map[string]bool{"deleted": false})
		return
	}
	existed, err := h.spectator.End(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "end session", err)
		return
	}
	h.writeSuccess(w, map[string]bool{"deleted": existed})
}

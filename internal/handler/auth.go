package handler

import (
	"errors"
	"net/http"

	"github.com/snake-lounge/internal/auth"
	"github.com/snake-lounge/internal/domain"
	"github.com/snake-lounge/internal/service"
)

type signupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=3,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by signup, login and me
type AuthResponse struct {
	Success bool         `json:"success"`
	User    *domain.User `json:"user,omitempty"`
	Token   string       `json:"token,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Signup creates an account and logs it in
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := h.decode(r, &req); err != nil {
		h.writeServiceError(w, "signup", err)
		return
	}

	session, err := h.identity.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, "signup", err)
		return
	}
	h.writeSession(w, http.StatusCreated, session)
}

// Login reports bad credentials as a 200 with success=false, without
// saying which of email or password was wrong.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		h.writeServiceError(w, "login", err)
		return
	}

	session, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.writeJSON(w, http.StatusOK, AuthResponse{Success: false, Error: domain.ErrInvalidCredentials.Error()})
			return
		}
		h.writeServiceError(w, "login", err)
		return
	}
	h.writeSession(w, http.StatusOK, session)
}

// Logout always acknowledges
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.identity.Logout(r.Context())
	h.authn.ClearCookie(w)
	h.writeSuccess(w, map[string]string{"status": "logged out"})
}

// Me returns the calling user
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity.Me(r.Context())
	if err != nil {
		h.writeServiceError(w, "me", err)
		return
	}
	h.writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: user})
}

// DeleteMe removes the calling user's account with everything it owns
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeServiceError(w, "delete account", err)
		return
	}
	if _, err := h.identity.DeleteAccount(r.Context(), id.UserID); err != nil {
		h.writeServiceError(w, "delete account", err)
		return
	}
	h.identity.Logout(r.Context())
	h.authn.ClearCookie(w)
	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, s *service.Session) {
	h.authn.SetCookie(w, s.Token, s.ExpiresAt)
	h.writeJSON(w, status, AuthResponse{Success: true, User: s.User, Token: s.Token})
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/snake-lounge/internal/auth"
	"github.com/snake-lounge/internal/domain"
	"github.com/snake-lounge/internal/metrics"
	"github.com/snake-lounge/internal/service"
)

// Options configures the router
type Options struct {
	AllowedOrigins []string
	// MetricsPath is where Prometheus metrics are served; empty disables it.
	MetricsPath string
}

// Handler provides HTTP handlers for the lounge API
type Handler struct {
	identity    *service.IdentityService
	leaderboard *service.LeaderboardService
	spectator   *service.SpectatorService
	authn       *auth.Authenticator
	metrics     *metrics.Metrics
	validate    *validator.Validate
	checks      map[string]func(context.Context) error
	opts        Options
	logger      *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identity *service.IdentityService,
	leaderboard *service.LeaderboardService,
	spectator *service.SpectatorService,
	authn *auth.Authenticator,
	m *metrics.Metrics,
	opts Options,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		identity:    identity,
		leaderboard: leaderboard,
		spectator:   spectator,
		authn:       authn,
		metrics:     m,
		validate:    newValidator(),
		checks:      make(map[string]func(context.Context) error),
		opts:        opts,
		logger:      logger,
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check func(context.Context) error) {
	h.checks[name] = check
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.metrics.Middleware)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(h.authn.Middleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	if h.opts.MetricsPath != "" {
		r.Handle(h.opts.MetricsPath, h.metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Delete("/me", h.DeleteMe)
	})

	r.Route("/leaderboard", func(r chi.Router) {
		r.Get("/", h.ListLeaderboard)
		r.Post("/", h.SubmitScore)
		r.Delete("/", h.ClearLeaderboard)
	})

	r.Route("/spectator", func(r chi.Router) {
		r.Get("/active", h.ListActivePlayers)
		r.Get("/player/{playerID}", h.GetPlayerState)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.StartSession)
			r.Put("/{sessionID}", h.UpdateSession)
			r.Delete("/{sessionID}", h.EndSession)
		})
	})

	return r
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
// Anything unrecognized is logged and hidden behind a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrUnauthenticated):
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthenticated)
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrConflict):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// decode reads a JSON body into dst and runs its validate tags. Snapshot
// errors keep the field name reported by the codec.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return domain.NewValidationError(typeErr.Field, "expected %s", typeErr.Type)
		}
		return domain.ErrInvalidRequest
	}
	if err := h.validate.Struct(dst); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			return fieldError(errs[0])
		}
		return err
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names so messages match the payload the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func fieldError(fe validator.FieldError) error {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return domain.NewValidationError(field, "required")
	case "oneof":
		return domain.NewValidationError(field, "must be one of [%s]", fe.Param())
	case "email":
		return domain.NewValidationError(field, "must be an email address")
	case "min":
		if fe.Kind() == reflect.String {
			return domain.NewValidationError(field, "must be at least %s characters", fe.Param())
		}
		return domain.NewValidationError(field, "must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return domain.NewValidationError(field, "must be at most %s characters", fe.Param())
		}
		return domain.NewValidationError(field, "must be at most %s", fe.Param())
	default:
		return domain.NewValidationError(field, "failed %s validation", fe.Tag())
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck probes every registered dependency
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			h.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("%s unavailable", name))
			return
		}
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

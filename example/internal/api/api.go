// Package api serves the example users API over chi.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/kroma-labs/sentinel-orm/example/internal/database"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Store is the user storage the handlers need.
type Store interface {
	ListUsers(ctx context.Context, limit int) ([]database.User, error)
	GetUser(ctx context.Context, id int64) (database.User, error)
	CreateUser(ctx context.Context, in database.NewUser) (database.User, error)
	Ping(ctx context.Context) error
}

// Options configures NewRouter.
type Options struct {
	Logger zerolog.Logger

	// Metrics serves /metrics when set.
	Metrics http.Handler

	// TracerProvider and Propagator default to the otel globals.
	TracerProvider trace.TracerProvider
	Propagator     propagation.TextMapPropagator
}

type handler struct {
	store  Store
	logger zerolog.Logger
}

// NewRouter returns the API routes:
//
//	GET  /users?limit=N
//	POST /users
//	GET  /users/{id}
//	GET  /readyz
//	GET  /metrics
func NewRouter(store Store, opts Options) http.Handler {
	tp, propagator := defaultTelemetry()
	if opts.TracerProvider != nil {
		tp = opts.TracerProvider
	}
	if opts.Propagator != nil {
		propagator = opts.Propagator
	}

	h := &handler{store: store, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	// logging runs inside tracing so its line carries the request's trace.
	r.Group(func(r chi.Router) {
		r.Use(tracing(tp, propagator))
		r.Use(logging(opts.Logger))
		r.Use(middleware.Recoverer)
		r.Get("/users", h.listUsers)
		r.Post("/users", h.createUser)
		r.Get("/users/{id}", h.getUser)
	})

	r.Get("/readyz", h.ready)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	return r
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxLimit {
			h.writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	users, err := h.store.ListUsers(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "id must be an integer")
		return
	}

	user, err := h.store.GetUser(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "user not found")
	case err != nil:
		h.internalError(w, r, err)
	default:
		h.writeJSON(w, http.StatusOK, user)
	}
}

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in database.NewUser
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Name == "" || in.Email == "" {
		h.writeError(w, r, http.StatusBadRequest, "name and email are required")
		return
	}

	user, err := h.store.CreateUser(r.Context(), in)
	switch {
	case errors.Is(err, database.ErrConflict):
		h.writeError(w, r, http.StatusConflict, "user already exists")
	case err != nil:
		h.internalError(w, r, err)
	default:
		h.writeJSON(w, http.StatusCreated, user)
	}
}

func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error().
		Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("request failed")
	h.writeError(w, r, http.StatusInternalServerError, "internal error")
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.writeJSON(w, status, errorResponse{
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write response")
	}
}

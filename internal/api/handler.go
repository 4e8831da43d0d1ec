// Package api provides HTTP handlers for the tech assist API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/techassist/internal/chat"
	"github.com/ashureev/techassist/internal/identity"
	"github.com/ashureev/techassist/internal/store"
)

const maxRequestBody = 1 << 20

// Handler provides common handler utilities.
type Handler struct {
	sessions *chat.Registry
	store    store.SessionStore
	logger   *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(sessions *chat.Registry, st store.SessionStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions: sessions,
		store:    st,
		logger:   logger,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decode reads a bounded JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// session resolves the Manager of the calling browser profile.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*chat.Manager, bool) {
	profileID := identity.ProfileIDFromContext(r.Context())
	if profileID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	m, err := h.sessions.Get(profileID)
	if err != nil {
		Error(w, http.StatusServiceUnavailable, "server is shutting down")
		return nil, false
	}
	return m, true
}

// writeChatError maps session errors onto HTTP responses. Backend
// failures carry the same user-facing text the conversation shows.
func (h *Handler) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrNoActiveTicket):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotReady):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrRegistryClosed):
		Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		kind := chat.Classify(err)
		h.logger.Warn("Assistant request failed", "kind", kind.String(), "error", err)
		Error(w, http.StatusBadGateway, kind.Message())
	}
}

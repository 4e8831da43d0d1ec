package api

import (
	"net/http"

	"github.com/ashureev/techassist/internal/domain"
	"github.com/go-chi/chi/v5"
)

// AssistHandler serves the assistant session of the calling profile.
type AssistHandler struct {
	*Handler
}

// NewAssistHandler creates a new assist handler.
func NewAssistHandler(base *Handler) *AssistHandler {
	return &AssistHandler{Handler: base}
}

// RegisterRoutes registers assist routes.
func (h *AssistHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/assist", func(r chi.Router) {
		r.Get("/session", h.GetSession)
		r.Put("/ticket", h.SelectTicket)
		r.Delete("/ticket", h.Deselect)
		r.Put("/knowledge", h.UpdateKnowledge)
		r.Post("/knowledge/refresh", h.RefreshKnowledge)
		r.Post("/messages", h.SendMessage)
	})
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// GetSession returns the current session snapshot.
func (h *AssistHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, m.Snapshot())
}

// SelectTicket makes the posted ticket the active one.
func (h *AssistHandler) SelectTicket(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	var t domain.Ticket
	if !decode(w, r, &t) {
		return
	}
	if t.ID == "" {
		Error(w, http.StatusBadRequest, "ticket id is required")
		return
	}
	if err := m.SelectTicket(r.Context(), t); err != nil {
		h.writeChatError(w, err)
		return
	}
	JSON(w, http.StatusOK, m.Snapshot())
}

// Deselect clears the active ticket and its stored session.
func (h *AssistHandler) Deselect(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := m.Deselect(r.Context()); err != nil {
		h.writeChatError(w, err)
		return
	}
	JSON(w, http.StatusOK, m.Snapshot())
}

// UpdateKnowledge accepts knowledge state fetched by the front end.
func (h *AssistHandler) UpdateKnowledge(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	var k domain.Knowledge
	if !decode(w, r, &k) {
		return
	}
	if err := m.UpdateKnowledge(k); err != nil {
		h.writeChatError(w, err)
		return
	}
	JSON(w, http.StatusOK, m.Snapshot())
}

// RefreshKnowledge fetches knowledge for the active ticket from the backend.
func (h *AssistHandler) RefreshKnowledge(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := m.RefreshKnowledge(r.Context()); err != nil {
		h.writeChatError(w, err)
		return
	}
	JSON(w, http.StatusOK, m.Snapshot())
}

// SendMessage posts a user message and waits for the assistant's reply.
// If the client goes away first, the exchange still completes in the
// background and the snapshot is returned with 202.
func (h *AssistHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	done, err := m.SendMessage(req.Text)
	if err != nil {
		h.writeChatError(w, err)
		return
	}

	select {
	case <-done:
		JSON(w, http.StatusOK, m.Snapshot())
	case <-r.Context().Done():
		JSON(w, http.StatusAccepted, m.Snapshot())
	}
}

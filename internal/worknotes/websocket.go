package worknotes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/techassist/internal/chat"
	"github.com/ashureev/techassist/internal/identity"
	"github.com/coder/websocket"
)

const writeTimeout = 10 * time.Second

// WebSocketHandler streams work notes for the caller's profile.
type WebSocketHandler struct {
	hub           *Hub
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(hub *Hub, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsMessage is the frame sent for every note.
type wsMessage struct {
	Type string        `json:"type"`
	Note chat.WorkNote `json:"note"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	profileID := identity.ProfileIDFromContext(r.Context())
	if profileID == "" {
		http.Error(w, `{"error":"missing profile"}`, http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "profile_id", profileID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "profile_id", profileID)
		}
	}()

	sub := h.hub.Subscribe(profileID)
	defer sub.Close()

	// Clients never send; CloseRead cancels ctx when the peer goes away.
	ctx := ws.CloseRead(r.Context())
	slog.Info("Work notes stream opened", "profile_id", profileID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Work notes stream closed", "profile_id", profileID)
			return
		case note := <-sub.C:
			if err := writeJSON(ctx, ws, wsMessage{Type: "work_notes", Note: note}); err != nil {
				slog.Debug("Work notes write failed", "error", err, "profile_id", profileID)
				return
			}
		}
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}

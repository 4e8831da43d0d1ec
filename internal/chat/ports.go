// Package chat owns the ticket-scoped assistant session: which ticket is
// active, the message and context logs, the opening turn and each turn
// exchange with the assistant backend.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ashureev/techassist/internal/assistant"
	"github.com/ashureev/techassist/internal/domain"
)

var (
	// ErrNoActiveTicket is returned when an operation needs a selected ticket.
	ErrNoActiveTicket = errors.New("no active ticket")
	// ErrNotReady is returned while the readiness gate is closed.
	ErrNotReady = errors.New("assistant is not ready")
	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrRegistryClosed is returned by Registry.Get after Close.
	ErrRegistryClosed = errors.New("session registry closed")
)

// Assistant is the backend the session talks to.
type Assistant interface {
	AskInIsolation(ctx context.Context, query string) (string, error)
	Act(ctx context.Context, query string, history []domain.ContextEntry) (assistant.Reply, error)
	FetchKnowledge(ctx context.Context, ticket domain.Ticket) (json.RawMessage, error)
}

// WorkNote is emitted whenever an assistant reply carries work notes.
// Consumers treat the latest note as authoritative.
type WorkNote struct {
	ProfileID string    `json:"profile_id"`
	TicketID  string    `json:"ticket_id"`
	Notes     string    `json:"notes"`
	At        time.Time `json:"at"`
}

// WorkNotesPublisher receives work notes. Publish must not block.
type WorkNotesPublisher interface {
	Publish(note WorkNote)
}

// Recorder receives every message appended to a session's log.
type Recorder interface {
	Record(profileID, ticketID string, msg domain.ChatMessage)
}

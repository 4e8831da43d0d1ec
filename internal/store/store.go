// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashureev/techassist/internal/domain"
)

// Entry names of the persisted session layout. All three are written and
// invalidated together.
const (
	EntryCurrentTicket = "current_ticket"
	EntryChatHistory   = "chat_history"
	EntryContext       = "context"
)

// Record is the persisted state of one browser profile's assistant session.
type Record struct {
	TicketID string                `json:"ticket_id"`
	Messages []domain.ChatMessage  `json:"messages"`
	Context  []domain.ContextEntry `json:"context"`
}

// IsEmpty returns true if neither log holds anything worth writing.
func (r *Record) IsEmpty() bool {
	return r == nil || (len(r.Messages) == 0 && len(r.Context) == 0)
}

// SessionStore persists assistant sessions keyed by browser profile.
type SessionStore interface {
	// Save writes the complete record. Implementations write all entries
	// atomically and skip empty records.
	Save(ctx context.Context, profileID string, rec *Record) error

	// Load returns the stored record, or nil if none exists or the stored
	// entries cannot be decoded.
	Load(ctx context.Context, profileID string) (*Record, error)

	// Clear removes every entry stored for the profile.
	Clear(ctx context.Context, profileID string) error

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// encodeEntries serializes a record into the three named entries.
func encodeEntries(rec *Record) (map[string]string, error) {
	messages := rec.Messages
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	history, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode chat history: %w", err)
	}

	entries := rec.Context
	if entries == nil {
		entries = []domain.ContextEntry{}
	}
	contextJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}

	return map[string]string{
		EntryCurrentTicket: rec.TicketID,
		EntryChatHistory:   string(history),
		EntryContext:       string(contextJSON),
	}, nil
}

// decodeEntries rebuilds a record from its named entries. It reports false
// when the ticket or history entry is missing or any entry is malformed.
// A missing context entry decodes as an empty context.
func decodeEntries(entries map[string]string) (*Record, bool) {
	ticketID, ok := entries[EntryCurrentTicket]
	if !ok || ticketID == "" {
		return nil, false
	}
	history, ok := entries[EntryChatHistory]
	if !ok {
		return nil, false
	}

	rec := &Record{TicketID: ticketID}
	if err := json.Unmarshal([]byte(history), &rec.Messages); err != nil {
		return nil, false
	}
	if raw, ok := entries[EntryContext]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Context); err != nil {
			return nil, false
		}
	}
	return rec, true
}

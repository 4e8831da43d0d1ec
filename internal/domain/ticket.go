// Package domain contains core domain types for the tech assist service.
package domain

import (
	"encoding/json"
	"fmt"
)

// Ticket is the ITSM record currently selected on the dashboard.
// ID uniquely keys an assistant session.
type Ticket struct {
	ID      string `json:"id"`
	Number  string `json:"number,omitempty"`
	Summary string `json:"summary"`
	Detail  string `json:"detail"`
	Status  string `json:"status,omitempty"`
}

// HasNarrative returns true if both summary and detail are populated.
// The opening assistant turn cannot be generated without them.
func (t *Ticket) HasNarrative() bool {
	return t != nil && t.Summary != "" && t.Detail != ""
}

// Knowledge is the state reported by the knowledge retrieval panel.
type Knowledge struct {
	TicketID string          `json:"ticket_id,omitempty"`
	Ready    bool            `json:"ready"`
	Loading  bool            `json:"loading"`
	Error    bool            `json:"error"`
	Content  json.RawMessage `json:"content,omitempty"`
}

// HasContent returns true if the knowledge payload carries anything besides null.
func (k Knowledge) HasContent() bool {
	trimmed := string(k.Content)
	return trimmed != "" && trimmed != "null" && trimmed != `""` && trimmed != "{}"
}

// TicketRecord is a ticket-like record returned by the assistant backend
// when a query matches historical tickets.
type TicketRecord struct {
	Number           string `json:"number,omitempty"`
	ShortDescription string `json:"short_description,omitempty"`
	Description      string `json:"description,omitempty"`
	CloseNotes       string `json:"close_notes,omitempty"`
	TicketLink       string `json:"ticket_link,omitempty"`
	SysID            string `json:"sys_id,omitempty"`
}

// Format renders the record as the text shown in the chat window.
func (r TicketRecord) Format() string {
	return fmt.Sprintf("Ticket Number: %s\n\nSummary: %s\n\nDescription: %s\n\nResolution: %s\n\nView Full Ticket: %s\n\nSystem ID: %s",
		orDefault(r.Number, "N/A"),
		orDefault(r.ShortDescription, "No description"),
		orDefault(r.Description, "No additional description"),
		orDefault(r.CloseNotes, "No close notes"),
		orDefault(r.TicketLink, "No link available"),
		orDefault(r.SysID, "N/A"),
	)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

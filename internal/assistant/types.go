// Package assistant implements the client for the resolution assistant backend.
package assistant

import (
	"context"

	"github.com/ashureev/techassist/internal/domain"
)

// Route identifies one backend operation independently of the transport.
type Route string

const (
	// RouteAskInIsolation asks a one-shot question without conversation state.
	RouteAskInIsolation Route = "ask_in_isolation"
	// RouteAct runs one conversational turn with the accumulated context.
	RouteAct Route = "act"
	// RouteKnowledge retrieves knowledge-base content for a ticket.
	RouteKnowledge Route = "knowledge"
)

// Transport carries a JSON-shaped payload to the backend and returns the
// raw JSON response body. Failures are wrapped with errdefs kinds.
type Transport interface {
	Call(ctx context.Context, route Route, payload any) ([]byte, error)
	Close() error
}

// QueryRequest is the payload of RouteAskInIsolation and RouteKnowledge.
type QueryRequest struct {
	Query string `json:"query"`
}

// ActRequest is the payload of RouteAct.
type ActRequest struct {
	Query   string          `json:"query"`
	Context ContextEnvelope `json:"context"`
}

// ContextEnvelope wraps the context log the way the backend expects it.
type ContextEnvelope struct {
	Context []domain.ContextEntry `json:"context"`
}

// ReplyKind discriminates the shapes a turn exchange response can take.
type ReplyKind string

const (
	// ReplyRecords carries a batch of ticket-like records.
	ReplyRecords ReplyKind = "records"
	// ReplyText carries free text, optionally with work notes and a
	// replacement context.
	ReplyText ReplyKind = "text"
	// ReplyMessage carries a bare message string.
	ReplyMessage ReplyKind = "message"
	// ReplyStatus is a response whose status code reports a failure.
	ReplyStatus ReplyKind = "status"
	// ReplyUnknown is a response that matched no known shape; Text holds
	// its serialized form.
	ReplyUnknown ReplyKind = "unknown"
)

// Reply is the decoded result of RouteAct.
type Reply struct {
	Kind            ReplyKind
	Text            string
	Records         []domain.TicketRecord
	WorkNotes       string
	Context         []domain.ContextEntry
	ReplacesContext bool
}

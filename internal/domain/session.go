package domain

// DisplayState is what the assistant panel should show instead of (or
// alongside) the conversation.
type DisplayState string

const (
	DisplayReady          DisplayState = "ready"
	DisplayLoading        DisplayState = "loading"
	DisplayBlockedError   DisplayState = "blocked_error"
	DisplayBlockedPending DisplayState = "blocked_pending"
)

// SessionSnapshot is a read-only copy of a session's observable state.
type SessionSnapshot struct {
	ProfileID            string         `json:"profile_id"`
	TicketID             string         `json:"ticket_id,omitempty"`
	Messages             []ChatMessage  `json:"messages"`
	Context              []ContextEntry `json:"context"`
	InitialTurnGenerated bool           `json:"initial_turn_generated"`
	Display              DisplayState   `json:"display"`
	Typing               bool           `json:"typing"`
	WorkNotes            []string       `json:"work_notes,omitempty"`
}

// LastMessage returns the most recent message, if any.
func (s *SessionSnapshot) LastMessage() (ChatMessage, bool) {
	if len(s.Messages) == 0 {
		return ChatMessage{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// RecentMessages returns the last n messages.
func (s *SessionSnapshot) RecentMessages(n int) []ChatMessage {
	if n >= len(s.Messages) {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

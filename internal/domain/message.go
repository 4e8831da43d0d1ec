package domain

// Sender identifies who authored a chat message.
type Sender string

const (
	// SenderUser marks messages typed by the support engineer.
	SenderUser Sender = "user"
	// SenderAssistant marks messages produced by the assistant or by the
	// session manager on its behalf.
	SenderAssistant Sender = "assistant"
)

// Role tags an entry of the context log sent to the backend.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// ChatMessage is one rendered entry of the message log.
type ChatMessage struct {
	Sender             Sender         `json:"sender"`
	Text               string         `json:"text"`
	Timestamp          int64          `json:"timestamp"`
	IsInitialTurn      bool           `json:"is_initial_turn,omitempty"`
	IsStructuredRecord bool           `json:"is_structured_record,omitempty"`
	AttachedRecords    []TicketRecord `json:"attached_records,omitempty"`
}

// ContextEntry is one role-tagged entry of the conversational context.
type ContextEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

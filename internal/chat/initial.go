package chat

import (
	"context"
	"fmt"
	"slices"

	"github.com/ashureev/techassist/internal/assistant"
	"github.com/ashureev/techassist/internal/domain"
)

// InitialFailureText replaces the opening turn when it cannot be generated.
const InitialFailureText = "I apologize, but I encountered an error while generating the initial resolution steps. Please try asking me directly about this ticket."

const initialQueryTemplate = `Read the following content. It contains steps to resolve a specific issue -

Incident Details-
Short Description: %s
Description: %s

Relevant resolution mechanism -
%s

Generate a set of instructions in a layman language for IT engineer who can execute backend commands to resolve the issue.`

// BuildInitialQuery renders the opening-turn request for a ticket and the
// extracted knowledge text.
func BuildInitialQuery(t domain.Ticket, knowledge string) string {
	return fmt.Sprintf(initialQueryTemplate, t.Summary, t.Detail, knowledge)
}

// maybeStartInitial launches the opening turn when the session is fresh,
// the gate is open and both the ticket narrative and knowledge are present.
// It runs at most once per generation. Caller holds mu.
func (m *Manager) maybeStartInitial() {
	if m.ticket == nil || m.initialDone || m.initialInFlight {
		return
	}
	if len(m.messages) > 0 || !m.gate.CanConverse() {
		return
	}
	if !m.ticket.HasNarrative() || !m.knowledge.HasContent() {
		return
	}
	if m.assistant == nil {
		return
	}

	m.initialInFlight = true
	m.pending++
	gen := m.generation
	query := BuildInitialQuery(*m.ticket, assistant.ExtractKnowledge(m.knowledge.Content))
	m.logger.Info("Generating initial turn", "ticket_id", m.ticket.ID)

	m.goCall(func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		text, err := m.assistant.AskInIsolation(ctx, query)
		cancel()
		m.applyInitial(gen, text, err)
	})
}

func (m *Manager) applyInitial(gen uint64, text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		m.logger.Debug("Discarding stale initial turn", "generation", gen)
		return
	}
	m.initialInFlight = false
	m.pending--
	m.initialDone = true

	if err != nil {
		m.logger.Warn("Initial turn failed", "ticket_id", m.ticket.ID, "error", err)
		m.appendMessage(domain.ChatMessage{
			Sender:        domain.SenderAssistant,
			Text:          InitialFailureText,
			IsInitialTurn: true,
		})
		m.persistLocked()
		return
	}

	m.appendMessage(domain.ChatMessage{
		Sender:        domain.SenderAssistant,
		Text:          text,
		IsInitialTurn: true,
	})
	m.seed = []domain.ContextEntry{{Role: domain.RoleSystem, Content: text}}
	if len(m.context) == 0 {
		m.context = slices.Clone(m.seed)
	}
	m.persistLocked()
}

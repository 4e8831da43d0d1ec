package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ashureev/techassist/internal/assistant"
	"github.com/ashureev/techassist/internal/domain"
)

const noRecordsText = "No tickets found for your query."

// SendMessage appends the user's message and starts one turn exchange
// with the assistant. The returned channel is closed once the reply has
// been applied or discarded; callers that do not care may drop it.
func (m *Manager) SendMessage(text string) (<-chan struct{}, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()

	if m.ticket == nil {
		return nil, ErrNoActiveTicket
	}
	// Input waits for the opening turn so it stays first in both logs.
	if !m.gate.CanConverse() || m.assistant == nil || m.initialInFlight {
		return nil, ErrNotReady
	}

	m.appendMessage(domain.ChatMessage{Sender: domain.SenderUser, Text: text})
	m.persistLocked()

	history := m.context
	if len(history) == 0 {
		history = m.seed
	}
	history = slices.Clone(history)

	gen := m.generation
	m.pending++
	done := make(chan struct{})

	m.goCall(func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		reply, err := m.assistant.Act(ctx, text, history)
		cancel()
		m.applyExchange(gen, text, reply, err)
	})
	return done, nil
}

func (m *Manager) applyExchange(gen uint64, query string, reply assistant.Reply, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		m.logger.Debug("Discarding stale reply", "generation", gen)
		return
	}
	m.pending--

	if err != nil {
		kind := Classify(err)
		m.logger.Warn("Turn exchange failed", "ticket_id", m.ticket.ID, "kind", kind.String(), "error", err)
		m.appendMessage(domain.ChatMessage{Sender: domain.SenderAssistant, Text: kind.Message()})
		m.persistLocked()
		return
	}

	switch reply.Kind {
	case assistant.ReplyRecords:
		m.applyRecords(reply.Records)

	case assistant.ReplyText:
		m.appendMessage(domain.ChatMessage{Sender: domain.SenderAssistant, Text: reply.Text})
		if reply.WorkNotes != "" {
			m.publishWorkNotes(reply.WorkNotes)
		}
		if reply.ReplacesContext {
			m.context = slices.Clone(reply.Context)
		} else {
			m.appendContextPair(query, reply.Text)
		}

	case assistant.ReplyStatus:
		m.appendMessage(domain.ChatMessage{Sender: domain.SenderAssistant, Text: reply.Text})

	default:
		m.appendMessage(domain.ChatMessage{Sender: domain.SenderAssistant, Text: reply.Text})
		if reply.ReplacesContext {
			m.context = slices.Clone(reply.Context)
		} else {
			m.appendContextPair(query, reply.Text)
		}
	}
	m.persistLocked()
}

func (m *Manager) applyRecords(records []domain.TicketRecord) {
	if len(records) == 0 {
		m.appendMessage(domain.ChatMessage{Sender: domain.SenderAssistant, Text: noRecordsText})
		return
	}

	m.appendMessage(domain.ChatMessage{
		Sender: domain.SenderAssistant,
		Text:   fmt.Sprintf("Found %d tickets related to your query:", len(records)),
	})
	for _, rec := range records {
		m.appendMessage(domain.ChatMessage{
			Sender:             domain.SenderAssistant,
			Text:               rec.Format(),
			IsStructuredRecord: true,
			AttachedRecords:    []domain.TicketRecord{rec},
		})
	}
}

func (m *Manager) appendContextPair(query, reply string) {
	m.context = append(m.context,
		domain.ContextEntry{Role: domain.RoleUser, Content: query},
		domain.ContextEntry{Role: domain.RoleSystem, Content: reply},
	)
}

func (m *Manager) publishWorkNotes(notes string) {
	m.workNotes = append(m.workNotes, notes)
	if m.publisher == nil {
		return
	}
	m.publisher.Publish(WorkNote{
		ProfileID: m.profileID,
		TicketID:  m.ticket.ID,
		Notes:     notes,
		At:        m.now(),
	})
}

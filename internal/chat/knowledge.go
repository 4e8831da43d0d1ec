package chat

import (
	"context"
	"fmt"

	"github.com/ashureev/techassist/internal/domain"
)

// UpdateKnowledge feeds the readiness gate and knowledge payload reported
// for the active ticket. Updates tagged with another ticket are ignored.
func (m *Manager) UpdateKnowledge(k domain.Knowledge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()

	if m.ticket == nil {
		return ErrNoActiveTicket
	}
	if k.TicketID != "" && k.TicketID != m.ticket.ID {
		m.logger.Debug("Ignoring knowledge for inactive ticket",
			"ticket_id", m.ticket.ID, "knowledge_ticket_id", k.TicketID)
		return nil
	}

	k.TicketID = m.ticket.ID
	m.knowledge = k
	m.gate.Update(k.Ready, k.Loading, k.Error)
	m.maybeStartInitial()
	return nil
}

// RefreshKnowledge fetches knowledge for the active ticket from the
// backend and feeds the result through UpdateKnowledge semantics. The gate
// reports loading while the call is outstanding.
func (m *Manager) RefreshKnowledge(ctx context.Context) error {
	m.mu.Lock()
	m.touch()
	if m.ticket == nil {
		m.mu.Unlock()
		return ErrNoActiveTicket
	}
	if m.assistant == nil {
		m.mu.Unlock()
		return ErrNotReady
	}
	ticket := *m.ticket
	gen := m.generation
	m.knowledge = domain.Knowledge{TicketID: ticket.ID, Loading: true}
	m.gate.Update(false, true, false)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	raw, err := m.assistant.FetchKnowledge(ctx, ticket)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		m.logger.Debug("Discarding stale knowledge", "ticket_id", ticket.ID)
		return nil
	}
	if err != nil {
		m.knowledge = domain.Knowledge{TicketID: ticket.ID, Error: true}
		m.gate.Update(false, false, true)
		return fmt.Errorf("fetch knowledge for %s: %w", ticket.ID, err)
	}

	m.knowledge = domain.Knowledge{TicketID: ticket.ID, Ready: true, Content: raw}
	m.gate.Update(true, false, false)
	m.maybeStartInitial()
	return nil
}

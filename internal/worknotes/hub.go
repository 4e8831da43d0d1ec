// Package worknotes fans work notes produced by assistant replies out to
// the ticket-details surface.
package worknotes

import (
	"log/slog"
	"sync"

	"github.com/ashureev/techassist/internal/chat"
)

// Hub keeps the latest work note per profile and pushes updates to
// subscribers. Delivery is latest-wins: a slow subscriber only ever sees
// the newest pending note.
type Hub struct {
	mu     sync.Mutex
	latest map[string]chat.WorkNote
	subs   map[string]map[*Subscription]struct{}
	logger *slog.Logger
}

// Subscription receives notes for one profile on C.
type Subscription struct {
	C <-chan chat.WorkNote

	ch        chan chat.WorkNote
	hub       *Hub
	profileID string
	once      sync.Once
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		latest: make(map[string]chat.WorkNote),
		subs:   make(map[string]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Publish implements chat.WorkNotesPublisher. It never blocks.
func (h *Hub) Publish(note chat.WorkNote) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest[note.ProfileID] = note
	for sub := range h.subs[note.ProfileID] {
		offer(sub.ch, note)
	}
	h.logger.Debug("Work note published",
		"profile_id", note.ProfileID,
		"ticket_id", note.TicketID,
		"subscribers", len(h.subs[note.ProfileID]),
	)
}

// Latest returns the most recent note for profileID.
func (h *Hub) Latest(profileID string) (chat.WorkNote, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	note, ok := h.latest[profileID]
	return note, ok
}

// Subscribe registers a subscriber for profileID. The latest note, if any,
// is already pending on the returned subscription.
func (h *Hub) Subscribe(profileID string) *Subscription {
	ch := make(chan chat.WorkNote, 1)
	sub := &Subscription{C: ch, ch: ch, hub: h, profileID: profileID}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[profileID] == nil {
		h.subs[profileID] = make(map[*Subscription]struct{})
	}
	h.subs[profileID][sub] = struct{}{}
	if note, ok := h.latest[profileID]; ok {
		ch <- note
	}
	return sub
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subs[s.profileID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.subs, s.profileID)
			}
		}
	})
}

// offer replaces any pending value in a size-1 channel with note. Callers
// hold the hub lock, so no other sender races with it.
func offer(ch chan chat.WorkNote, note chat.WorkNote) {
	select {
	case ch <- note:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- note:
	default:
	}
}

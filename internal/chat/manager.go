package chat

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/techassist/internal/domain"
	"github.com/ashureev/techassist/internal/store"
)

const (
	defaultCallTimeout = 60 * time.Second
	persistTimeout     = 5 * time.Second
)

// Options holds the collaborators shared by every Manager.
type Options struct {
	Store     store.SessionStore
	Assistant Assistant
	Publisher WorkNotesPublisher
	Recorder  Recorder
	Logger    *slog.Logger
	// CallTimeout bounds each outbound assistant call.
	CallTimeout time.Duration
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Manager is the assistant session of one browser profile. All state is
// guarded by mu; outbound calls run in goroutines without the lock and
// are applied only if the generation they captured is still current.
type Manager struct {
	profileID string
	store     store.SessionStore
	assistant Assistant
	publisher WorkNotesPublisher
	recorder  Recorder
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	mu              sync.Mutex
	ticket          *domain.Ticket
	generation      uint64
	messages        []domain.ChatMessage
	context         []domain.ContextEntry
	seed            []domain.ContextEntry
	initialDone     bool
	initialInFlight bool
	pending         int
	gate            Gate
	knowledge       domain.Knowledge
	workNotes       []string
	lastTimestamp   int64
	lastActive      time.Time

	wg sync.WaitGroup
}

// NewManager creates an idle session for profileID.
func NewManager(profileID string, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Store == nil {
		opts.Store = store.NewMemory(logger)
	}

	return &Manager{
		profileID:  profileID,
		store:      opts.Store,
		assistant:  opts.Assistant,
		publisher:  opts.Publisher,
		recorder:   opts.Recorder,
		logger:     logger.With("profile_id", profileID),
		timeout:    timeout,
		now:        now,
		lastActive: now(),
	}
}

// ProfileID returns the browser profile this session belongs to.
func (m *Manager) ProfileID() string {
	return m.profileID
}

// SelectTicket makes t the active ticket. Selecting the active ticket
// again only refreshes its fields. Selecting a different ticket discards
// the current session; the first selection after idle restores the stored
// session when it belongs to t.
func (m *Manager) SelectTicket(ctx context.Context, t domain.Ticket) error {
	if t.ID == "" {
		return m.Deselect(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()

	if m.ticket != nil && m.ticket.ID == t.ID {
		m.ticket = &t
		m.maybeStartInitial()
		return nil
	}

	switching := m.ticket != nil
	m.resetLocked()
	m.ticket = &t

	if !switching {
		rec, err := m.store.Load(ctx, m.profileID)
		if err != nil {
			m.logger.Warn("Failed to load stored session", "error", err)
		}
		if rec != nil && rec.TicketID == t.ID && len(rec.Messages) > 0 {
			m.messages = rec.Messages
			m.context = rec.Context
			m.initialDone = true
			if first := rec.Messages[0]; first.IsInitialTurn && first.Text != InitialFailureText {
				m.seed = []domain.ContextEntry{{Role: domain.RoleSystem, Content: first.Text}}
			}
			m.lastTimestamp = rec.Messages[len(rec.Messages)-1].Timestamp
			m.logger.Info("Session restored", "ticket_id", t.ID, "messages", len(rec.Messages))
			return nil
		}
	}

	if err := m.store.Clear(ctx, m.profileID); err != nil {
		m.logger.Error("Failed to clear stored session", "ticket_id", t.ID, "error", err)
	}
	m.logger.Info("Session reset", "ticket_id", t.ID, "switched", switching)
	return nil
}

// Deselect ends the active session and clears its storage.
func (m *Manager) Deselect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()

	if m.ticket == nil {
		return nil
	}
	ticketID := m.ticket.ID
	m.resetLocked()

	if err := m.store.Clear(ctx, m.profileID); err != nil {
		m.logger.Error("Failed to clear stored session", "ticket_id", ticketID, "error", err)
	}
	m.logger.Info("Session closed", "ticket_id", ticketID)
	return nil
}

// Snapshot returns a copy of the observable session state.
func (m *Manager) Snapshot() domain.SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := domain.SessionSnapshot{
		ProfileID:            m.profileID,
		Messages:             slices.Clone(m.messages),
		Context:              slices.Clone(m.context),
		InitialTurnGenerated: m.initialDone,
		Display:              m.gate.Display(),
		Typing:               m.pending > 0,
		WorkNotes:            slices.Clone(m.workNotes),
	}
	if snap.Messages == nil {
		snap.Messages = []domain.ChatMessage{}
	}
	if snap.Context == nil {
		snap.Context = []domain.ContextEntry{}
	}
	if m.ticket != nil {
		snap.TicketID = m.ticket.ID
	}
	return snap
}

// Wait blocks until every outbound call started so far has been applied
// or discarded.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// idleSince reports whether the manager has had no activity and no
// in-flight calls since cutoff.
func (m *Manager) idleSince(cutoff time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending == 0 && !m.initialInFlight && m.lastActive.Before(cutoff)
}

// resetLocked drops all in-memory session state and invalidates any
// in-flight call.
func (m *Manager) resetLocked() {
	m.generation++
	m.ticket = nil
	m.messages = nil
	m.context = nil
	m.seed = nil
	m.initialDone = false
	m.initialInFlight = false
	m.pending = 0
	m.gate = Gate{}
	m.knowledge = domain.Knowledge{}
	m.workNotes = nil
}

// markActive records activity from outside the manager's lock.
func (m *Manager) markActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()
}

func (m *Manager) touch() {
	m.lastActive = m.now()
}

// nextTimestamp returns unix milliseconds that never go backwards within
// a session.
func (m *Manager) nextTimestamp() int64 {
	ts := m.now().UnixMilli()
	if ts < m.lastTimestamp {
		ts = m.lastTimestamp
	}
	m.lastTimestamp = ts
	return ts
}

func (m *Manager) appendMessage(msg domain.ChatMessage) {
	msg.Timestamp = m.nextTimestamp()
	m.messages = append(m.messages, msg)
	if m.recorder != nil && m.ticket != nil {
		m.recorder.Record(m.profileID, m.ticket.ID, msg)
	}
}

// persistLocked writes the full session triple. Failures are logged; the
// in-memory session stays authoritative.
func (m *Manager) persistLocked() {
	if m.ticket == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	rec := &store.Record{
		TicketID: m.ticket.ID,
		Messages: m.messages,
		Context:  m.context,
	}
	if err := m.store.Save(ctx, m.profileID, rec); err != nil {
		m.logger.Error("Failed to persist session", "ticket_id", m.ticket.ID, "error", err)
	}
}

// goCall runs fn in a tracked goroutine.
func (m *Manager) goCall(fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}

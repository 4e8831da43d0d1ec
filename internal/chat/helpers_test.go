package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/techassist/internal/assistant"
	"github.com/ashureev/techassist/internal/domain"
	"github.com/ashureev/techassist/internal/store"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAssistant struct {
	mu          sync.Mutex
	askFn       func(ctx context.Context, query string) (string, error)
	actFn       func(ctx context.Context, query string, history []domain.ContextEntry) (assistant.Reply, error)
	fetchFn     func(ctx context.Context, t domain.Ticket) (json.RawMessage, error)
	askQueries  []string
	actQueries  []string
	actContexts [][]domain.ContextEntry
}

func (f *fakeAssistant) AskInIsolation(ctx context.Context, query string) (string, error) {
	f.mu.Lock()
	f.askQueries = append(f.askQueries, query)
	fn := f.askFn
	f.mu.Unlock()
	if fn == nil {
		return "1. Check the disk\n2. Restart the service", nil
	}
	return fn(ctx, query)
}

func (f *fakeAssistant) Act(ctx context.Context, query string, history []domain.ContextEntry) (assistant.Reply, error) {
	f.mu.Lock()
	f.actQueries = append(f.actQueries, query)
	f.actContexts = append(f.actContexts, history)
	fn := f.actFn
	f.mu.Unlock()
	if fn == nil {
		return assistant.Reply{Kind: assistant.ReplyText, Text: "ok"}, nil
	}
	return fn(ctx, query, history)
}

func (f *fakeAssistant) FetchKnowledge(ctx context.Context, t domain.Ticket) (json.RawMessage, error) {
	f.mu.Lock()
	fn := f.fetchFn
	f.mu.Unlock()
	if fn == nil {
		return json.RawMessage(`{"output":{"data":{"content":"KB steps"}}}`), nil
	}
	return fn(ctx, t)
}

func (f *fakeAssistant) askCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.askQueries)
}

func (f *fakeAssistant) actCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.actQueries)
}

func (f *fakeAssistant) lastActContext() []domain.ContextEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.actContexts) == 0 {
		return nil
	}
	return f.actContexts[len(f.actContexts)-1]
}

type recordingPublisher struct {
	mu    sync.Mutex
	notes []WorkNote
}

func (p *recordingPublisher) Publish(n WorkNote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, n)
}

func (p *recordingPublisher) all() []WorkNote {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]WorkNote(nil), p.notes...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	mgr       *Manager
	store     *store.MemoryStore
	assistant *fakeAssistant
	publisher *recordingPublisher
	clock     *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     store.NewMemory(nil),
		assistant: &fakeAssistant{},
		publisher: &recordingPublisher{},
		clock:     newFakeClock(),
	}
	h.mgr = NewManager("profile-1", h.options())
	t.Cleanup(h.mgr.Wait)
	return h
}

func (h *harness) options() Options {
	return Options{
		Store:       h.store,
		Assistant:   h.assistant,
		Publisher:   h.publisher,
		CallTimeout: 5 * time.Second,
		Now:         h.clock.Now,
	}
}

func ticket(id string) domain.Ticket {
	return domain.Ticket{
		ID:      id,
		Number:  "INC" + id,
		Summary: "Disk full on app server",
		Detail:  "The /var partition on app-01 is at 100%",
	}
}

func readyKnowledge() domain.Knowledge {
	return domain.Knowledge{Ready: true, Content: json.RawMessage(`{"response":"steps..."}`)}
}

// openSession selects id and opens the gate with knowledge, then waits for
// the opening turn.
func (h *harness) openSession(t *testing.T, id string) {
	t.Helper()
	if err := h.mgr.SelectTicket(context.Background(), ticket(id)); err != nil {
		t.Fatalf("SelectTicket failed: %v", err)
	}
	if err := h.mgr.UpdateKnowledge(readyKnowledge()); err != nil {
		t.Fatalf("UpdateKnowledge failed: %v", err)
	}
	h.mgr.Wait()
}

func (h *harness) send(t *testing.T, text string) {
	t.Helper()
	done, err := h.mgr.SendMessage(text)
	if err != nil {
		t.Fatalf("SendMessage(%q) failed: %v", text, err)
	}
	<-done
}

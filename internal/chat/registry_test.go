package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/techassist/internal/store"
)

func TestRegistryReusesManagers(t *testing.T) {
	r := NewRegistry(Options{Store: store.NewMemory(nil), Assistant: &fakeAssistant{}}, time.Hour)
	defer r.Close()

	a, err := r.Get("p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	b, _ := r.Get("p1")
	c, _ := r.Get("p2")
	if a != b {
		t.Error("expected the same manager for the same profile")
	}
	if a == c {
		t.Error("expected different managers for different profiles")
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 managers, got %d", r.Len())
	}
}

func TestRegistrySweepEvictsIdle(t *testing.T) {
	clock := newFakeClock()
	st := store.NewMemory(nil)
	r := NewRegistry(Options{Store: st, Assistant: &fakeAssistant{}, Now: clock.Now}, 10*time.Minute)
	defer r.Close()

	m, _ := r.Get("idle")
	if err := m.SelectTicket(context.Background(), ticket("INC100")); err != nil {
		t.Fatalf("SelectTicket failed: %v", err)
	}
	if err := m.UpdateKnowledge(readyKnowledge()); err != nil {
		t.Fatalf("UpdateKnowledge failed: %v", err)
	}
	m.Wait()

	clock.Advance(5 * time.Minute)
	if _, err := r.Get("busy"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if n := r.Sweep(); n != 0 {
		t.Fatalf("expected nothing evicted yet, got %d", n)
	}

	clock.Advance(6 * time.Minute)
	if n := r.Sweep(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}

	// Storage survives eviction; the next manager restores from it.
	fresh, _ := r.Get("idle")
	if fresh == m {
		t.Fatal("expected a new manager after eviction")
	}
	if err := fresh.SelectTicket(context.Background(), ticket("INC100")); err != nil {
		t.Fatalf("SelectTicket failed: %v", err)
	}
	if snap := fresh.Snapshot(); len(snap.Messages) != 1 {
		t.Errorf("expected restored session, got %+v", snap.Messages)
	}
}

func TestRegistrySweepKeepsBusyManagers(t *testing.T) {
	clock := newFakeClock()
	release := make(chan struct{})
	fa := &fakeAssistant{askFn: func(context.Context, string) (string, error) {
		<-release
		return "steps", nil
	}}
	r := NewRegistry(Options{Store: store.NewMemory(nil), Assistant: fa, Now: clock.Now}, time.Minute)

	m, _ := r.Get("p")
	if err := m.SelectTicket(context.Background(), ticket("INC100")); err != nil {
		t.Fatalf("SelectTicket failed: %v", err)
	}
	if err := m.UpdateKnowledge(readyKnowledge()); err != nil {
		t.Fatalf("UpdateKnowledge failed: %v", err)
	}

	clock.Advance(time.Hour)
	if n := r.Sweep(); n != 0 {
		t.Errorf("expected manager with in-flight call to survive, got %d evictions", n)
	}
	close(release)
	r.Close()
}

func TestRegistryClosed(t *testing.T) {
	r := NewRegistry(Options{Store: store.NewMemory(nil)}, 0)
	r.Close()
	if _, err := r.Get("p"); !errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("expected ErrRegistryClosed, got %v", err)
	}
	if n := r.Sweep(); n != 0 {
		t.Errorf("expected sweep to be disabled without TTL, got %d", n)
	}
}

func TestRegistryEvictorStops(t *testing.T) {
	r := NewRegistry(Options{Store: store.NewMemory(nil)}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	r.StartEvictor(ctx, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()
	r.Close()
}

func TestRegistryGetRefreshesActivity(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(Options{Store: store.NewMemory(nil), Assistant: &fakeAssistant{}, Now: clock.Now}, 10*time.Minute)
	defer r.Close()

	first, _ := r.Get("p")
	clock.Advance(11 * time.Minute)
	second, _ := r.Get("p")
	if n := r.Sweep(); n != 0 {
		t.Fatalf("expected a manager just handed out to survive the sweep, got %d evictions", n)
	}
	if first != second {
		t.Fatal("expected the same manager")
	}
	if err := second.SelectTicket(context.Background(), ticket("INC100")); err != nil {
		t.Fatalf("SelectTicket failed: %v", err)
	}
	third, _ := r.Get("p")
	if third != second || third.Snapshot().TicketID != "INC100" {
		t.Error("expected one manager per profile")
	}
}

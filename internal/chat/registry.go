package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

// Registry hands out one Manager per browser profile and evicts managers
// that stay idle longer than the configured TTL. Eviction only drops the
// in-memory manager; the stored session survives and is restored on the
// next request.
type Registry struct {
	opts    Options
	idleTTL time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	managers map[string]*Manager
	closed   bool
}

// NewRegistry creates a registry whose managers share opts.
func NewRegistry(opts Options, idleTTL time.Duration) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		opts:     opts,
		idleTTL:  idleTTL,
		logger:   logger,
		managers: make(map[string]*Manager),
	}
}

// Get returns the manager for profileID, creating it on first use.
func (r *Registry) Get(profileID string) (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	if m, ok := r.managers[profileID]; ok {
		// Refresh under r.mu so a concurrent Sweep cannot evict a manager
		// that is being handed out.
		m.markActive()
		return m, nil
	}
	m := NewManager(profileID, r.opts)
	r.managers[profileID] = m
	r.logger.Debug("Session manager created", "profile_id", profileID)
	return m, nil
}

// Len returns the number of live managers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// StartEvictor runs a background goroutine that sweeps idle managers until
// ctx is done. A non-positive TTL disables eviction.
func (r *Registry) StartEvictor(ctx context.Context, interval time.Duration) {
	if r.idleTTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		r.logger.Info("Session evictor started", "interval", interval, "ttl", r.idleTTL)

		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-ctx.Done():
				r.logger.Info("Session evictor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep evicts every manager idle for longer than the TTL and returns how
// many were removed.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	now := time.Now
	if r.opts.Now != nil {
		now = r.opts.Now
	}
	cutoff := now().Add(-r.idleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, m := range r.managers {
		if m.idleSince(cutoff) {
			delete(r.managers, id)
			evicted++
		}
	}
	if evicted > 0 {
		r.logger.Info("Evicted idle sessions", "count", evicted, "remaining", len(r.managers))
	}
	return evicted
}

// Close stops handing out managers and waits for their in-flight calls.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	managers := make([]*Manager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.mu.Unlock()

	for _, m := range managers {
		m.Wait()
	}
}

package store

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryStore implements SessionStore with an in-process map. Entries are
// kept in their serialized form so loads never alias caller memory.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]map[string]string
	logger   *slog.Logger
}

// NewMemory creates an empty in-memory session store.
func NewMemory(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		profiles: make(map[string]map[string]string),
		logger:   logger,
	}
}

// Save implements SessionStore.
func (s *MemoryStore) Save(ctx context.Context, profileID string, rec *Record) error {
	if rec.IsEmpty() {
		return nil
	}
	entries, err := encodeEntries(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profileID] = entries
	return nil
}

// Load implements SessionStore.
func (s *MemoryStore) Load(ctx context.Context, profileID string) (*Record, error) {
	s.mu.RLock()
	entries, ok := s.profiles[profileID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	rec, ok := decodeEntries(entries)
	if !ok {
		s.logger.Warn("Discarding malformed stored session", "profile_id", profileID)
		return nil, nil
	}
	return rec, nil
}

// Clear implements SessionStore.
func (s *MemoryStore) Clear(ctx context.Context, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, profileID)
	return nil
}

// SetEntry overwrites a single raw entry. It exists to reproduce partially
// written or corrupt state.
func (s *MemoryStore) SetEntry(profileID, name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profileID]; !ok {
		s.profiles[profileID] = make(map[string]string)
	}
	s.profiles[profileID][name] = value
}

// Ping implements SessionStore.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close implements SessionStore.
func (s *MemoryStore) Close() error { return nil }

package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "techassist:"

var entryNames = []string{EntryCurrentTicket, EntryChatHistory, EntryContext}

// RedisStore implements SessionStore using Redis. Keys never expire;
// invalidation is driven by the session manager.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis creates a Redis-backed session store.
func NewRedis(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, logger: logger}
}

// Save implements SessionStore. All entries are written in one MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, profileID string, rec *Record) error {
	if rec.IsEmpty() {
		return nil
	}
	entries, err := encodeEntries(rec)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, name := range entryNames {
			pipe.Set(ctx, s.key(profileID, name), entries[name], 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load implements SessionStore.
func (s *RedisStore) Load(ctx context.Context, profileID string) (*Record, error) {
	keys := make([]string, len(entryNames))
	for i, name := range entryNames {
		keys[i] = s.key(profileID, name)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	entries := make(map[string]string, len(entryNames))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		entries[entryNames[i]] = str
	}
	if len(entries) == 0 {
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
func (s *RedisStore) Clear(ctx context.Context, profileID string) error {
	keys := make([]string, len(entryNames))
	for i, name := range entryNames {
		keys[i] = s.key(profileID, name)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Ping implements SessionStore.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements SessionStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(profileID, name string) string {
	return redisKeyPrefix + profileID + ":" + name
}

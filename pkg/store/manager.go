package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound indicates no unexpired entry exists for the key
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidEntry indicates the stored entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid store entry")
)

// DefaultTTL is used when NewManager is given a non-positive TTL.
const DefaultTTL = 24 * time.Hour

// Manager stores task outcomes in Redis.
type Manager struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewManager creates a new manager with Redis backend.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		redis:  redisClient,
		ttl:    ttl,
		logger: log.With().Str("component", "store").Logger(),
	}
}

// Get retrieves an entry by key.
// Returns ErrNotFound if the key doesn't exist or the entry is expired.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			Operations.WithLabelValues("get", "miss").Inc()
			return nil, ErrNotFound
		}
		Operations.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		Operations.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		if err := m.Delete(ctx, key); err != nil {
			m.logger.Debug().Err(err).Str("key", key.String()).Msg("Failed to delete expired entry")
		}
		Operations.WithLabelValues("get", "miss").Inc()
		return nil, ErrNotFound
	}

	Operations.WithLabelValues("get", "ok").Inc()
	return &entry, nil
}

// Set stores an entry with TTL based on its Expires field.
// Already expired entries are not stored.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("store entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		Operations.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("marshal store entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		Operations.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	Operations.WithLabelValues("set", "ok").Inc()
	return nil
}

// Delete removes an entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		Operations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	Operations.WithLabelValues("delete", "ok").Inc()
	return nil
}

// Record stores the outcome of task in namespace for the manager's TTL.
func (m *Manager) Record(ctx context.Context, namespace, task string, success bool, payload []byte, trace string) error {
	now := time.Now()
	return m.Set(ctx, Key{Namespace: namespace, Task: task}, &Entry{
		Task:     task,
		Success:  success,
		Payload:  payload,
		Trace:    trace,
		StoredAt: now,
		Expires:  now.Add(m.ttl),
	})
}

// Completed reports whether task has a recorded successful outcome.
func (m *Manager) Completed(ctx context.Context, namespace, task string) (bool, error) {
	entry, err := m.Get(ctx, Key{Namespace: namespace, Task: task})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return entry.Success, nil
}

// Pending filters tasks down to those without a recorded success.
func (m *Manager) Pending(ctx context.Context, namespace string, tasks []string) ([]string, error) {
	pending := make([]string, 0, len(tasks))
	for _, task := range tasks {
		done, err := m.Completed(ctx, namespace, task)
		if err != nil {
			return nil, fmt.Errorf("check %q: %w", task, err)
		}
		if !done {
			pending = append(pending, task)
		}
	}
	return pending, nil
}

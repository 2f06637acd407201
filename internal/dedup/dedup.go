// Package dedup drops inbound events that were already seen.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/quizbot/core/logger"
)

// DefaultTTL bounds how long an event key is remembered.
const DefaultTTL = 10 * time.Minute

// Guard remembers event keys. Seen reports true when key was recorded before.
type Guard interface {
	Seen(ctx context.Context, key string) (bool, error)
}

// Key builds a stable event key from the user and the transport event id.
func Key(userID string, eventID int64) string {
	return fmt.Sprintf("%s:%d", userID, eventID)
}

// Memory is a process-local guard with expiring keys.
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	seen  map[string]time.Time
	calls int
}

// NewMemory returns an in-memory guard. A non-positive ttl uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, seen: make(map[string]time.Time)}
}

// Seen records key and reports whether it was already present and unexpired.
func (m *Memory) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.calls++
	if m.calls%256 == 0 {
		for k, exp := range m.seen {
			if !now.Before(exp) {
				delete(m.seen, k)
			}
		}
	}
	if exp, ok := m.seen[key]; ok && now.Before(exp) {
		return true, nil
	}
	m.seen[key] = now.Add(m.ttl)
	return false, nil
}

// Len returns the number of remembered keys, expired ones included until swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

type setNXer interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// Redis shares seen keys between bot instances with SET NX.
type Redis struct {
	client setNXer
	prefix string
	ttl    time.Duration
}

// NewRedis wraps a redis client. Keys are stored under prefix.
func NewRedis(client setNXer, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "quizbot:event:"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Seen reports whether key was set before this call.
func (r *Redis) Seen(ctx context.Context, key string) (bool, error) {
	created, err := r.client.SetNX(ctx, r.prefix+key, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !created, nil
}

// Check asks g about key and fails open: a backend error is logged and
// the event is treated as new.
func Check(ctx context.Context, g Guard, key string) bool {
	if g == nil || key == "" {
		return false
	}
	dup, err := g.Seen(ctx, key)
	if err != nil {
		logger.Warn(ctx, "dedup", "dedup.check",
			slog.String("status", "fail"),
			slog.String("key", key),
			logger.Err(err),
		)
		return false
	}
	if dup {
		logger.Info(ctx, "dedup", "dedup.check",
			slog.String("status", "duplicate"),
			slog.String("key", key),
		)
	}
	return dup
}

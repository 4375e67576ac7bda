// Package cache implements the time-windowed snapshot cache.
//
// HOW IT WORKS:
// Each entry stores a JSON payload together with the moment it was written.
// On read, an entry older than the TTL is treated as if it did not exist,
// and it is deleted on the spot. There is no background sweeper and no
// other invalidation rule besides explicit Discard:
//
//	valid  ⇔  now - timestamp ≤ TTL
//
// Storage is pluggable through Store, so the same rules apply whether the
// bytes live in SQLite, an in-process LRU or Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTTL is how long a snapshot is trusted.
const DefaultTTL = 15 * time.Minute

// Kinds of cached data. Each profile has at most one entry per kind.
const (
	KindDashboard = "github_dashboard_cache"
	KindCommits   = "github_commits_cache"
)

// Entry is one stored snapshot.
type Entry struct {
	Payload   []byte
	Timestamp time.Time
}

// Store persists entries by key. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the entry for key, or ok=false if there is none.
	Get(ctx context.Context, key string) (entry Entry, ok bool, err error)
	Put(ctx context.Context, key string, entry Entry) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Key scopes a data kind to one profile:
//
//	Key("c9f1", KindDashboard) == "c9f1:github_dashboard_cache"
func Key(profile, kind string) string {
	return profile + ":" + kind
}

// Cache applies the TTL rule on top of a Store.
type Cache struct {
	store  Store
	ttl    time.Duration
	clock  clockwork.Clock
	logger *slog.Logger
}

// New creates a Cache. A ttl <= 0 means DefaultTTL; a nil clock means the
// real clock.
func New(store Store, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{store: store, ttl: ttl, clock: clock, logger: logger}
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Load decodes the entry for key into dst if it is still fresh and
// returns the time it was saved.
//
// ok is false when there is no entry, when it is stale, or when its
// payload cannot be decoded; in the last two cases the entry is removed.
func (c *Cache) Load(ctx context.Context, key string, dst any) (time.Time, bool, error) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("cache: reading %s: %w", key, err)
	}
	if !ok {
		return time.Time{}, false, nil
	}

	if age := c.clock.Since(entry.Timestamp); age > c.ttl {
		c.logger.Debug("cache entry expired",
			slog.String("key", key),
			slog.Duration("age", age),
		)
		c.discard(ctx, key)
		return time.Time{}, false, nil
	}

	if err := json.Unmarshal(entry.Payload, dst); err != nil {
		c.logger.Warn("dropping undecodable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		c.discard(ctx, key)
		return time.Time{}, false, nil
	}

	return entry.Timestamp, true, nil
}

// Save stores payload under key stamped with the current time, replacing
// any previous entry, and returns that time.
func (c *Cache) Save(ctx context.Context, key string, payload any) (time.Time, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return time.Time{}, fmt.Errorf("cache: encoding %s: %w", key, err)
	}

	now := c.clock.Now()
	if err := c.store.Put(ctx, key, Entry{Payload: data, Timestamp: now}); err != nil {
		return time.Time{}, fmt.Errorf("cache: writing %s: %w", key, err)
	}
	return now, nil
}

// Discard removes the entry for key.
func (c *Cache) Discard(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("cache: deleting %s: %w", key, err)
	}
	return nil
}

// DiscardProfile removes every kind of entry belonging to profile.
func (c *Cache) DiscardProfile(ctx context.Context, profile string) error {
	return errors.Join(
		c.Discard(ctx, Key(profile, KindDashboard)),
		c.Discard(ctx, Key(profile, KindCommits)),
	)
}

func (c *Cache) discard(ctx context.Context, key string) {
	if err := c.Discard(ctx, key); err != nil {
		c.logger.Warn("failed to drop cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Package redisstore is a cache.Store on Redis, for running several
// server instances against one shared snapshot cache.
//
// Each entry is a single string value holding
//
//	{"payload": <snapshot JSON>, "timestamp": <epoch ms>}
//
// The TTL rule is still enforced by cache.Cache; Redis expiry is only set
// as a backstop so abandoned profiles do not accumulate.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/ghdash/internal/cache"
)

var _ cache.Store = (*Store)(nil)

type Store struct {
	rdb    *redis.Client
	prefix string
	expiry time.Duration
}

// Connect parses a redis:// URL, pings the server and returns a Store.
// expiry is the backstop Redis TTL; 0 means keys never expire in Redis.
func Connect(ctx context.Context, rawURL string, expiry time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parsing url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisstore: ping failed: %w", err)
	}

	return New(rdb, expiry), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, expiry time.Duration) *Store {
	return &Store{rdb: rdb, prefix: "ghdash:", expiry: expiry}
}

type record struct {
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func encode(entry cache.Entry) ([]byte, error) {
	return json.Marshal(record{
		Payload:   entry.Payload,
		Timestamp: entry.Timestamp.UnixMilli(),
	})
}

func decode(data []byte) (cache.Entry, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return cache.Entry{}, err
	}
	return cache.Entry{
		Payload:   []byte(r.Payload),
		Timestamp: time.UnixMilli(r.Timestamp),
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	data, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("redisstore: get %s: %w", key, err)
	}

	entry, err := decode(data)
	if err != nil {
		// Not written by Put. Drop it and report a miss.
		if err := s.Delete(ctx, key); err != nil {
			return cache.Entry{}, false, err
		}
		return cache.Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *Store) Put(ctx context.Context, key string, entry cache.Entry) error {
	data, err := encode(entry)
	if err != nil {
		return fmt.Errorf("redisstore: encoding %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, s.prefix+key, data, s.expiry).Err(); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redisstore: del %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// Package memory is an in-process cache.Store backed by a bounded LRU.
// Entries are lost on restart.
package memory

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sakif/ghdash/internal/cache"
)

// DefaultSize bounds the store when New is given a non-positive size.
const DefaultSize = 1024

var _ cache.Store = (*Store)(nil)

// Store keeps at most size entries, evicting the least recently used.
type Store struct {
	lru *lru.Cache[string, cache.Entry]
}

func New(size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	l, err := lru.New[string, cache.Entry](size)
	if err != nil {
		return nil, err
	}
	return &Store{lru: l}, nil
}

func (s *Store) Get(_ context.Context, key string) (cache.Entry, bool, error) {
	e, ok := s.lru.Get(key)
	return e, ok, nil
}

func (s *Store) Put(_ context.Context, key string, entry cache.Entry) error {
	// Copy so callers cannot mutate what is stored.
	payload := make([]byte, len(entry.Payload))
	copy(payload, entry.Payload)
	s.lru.Add(key, cache.Entry{Payload: payload, Timestamp: entry.Timestamp})
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.lru.Remove(key)
	return nil
}

// Len reports how many entries are held.
func (s *Store) Len() int {
	return s.lru.Len()
}

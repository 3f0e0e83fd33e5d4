// Package storage persists document bins for the server. A bin is one
// opaque JSON record addressed by id; the protocol only ever reads or
// replaces it wholesale, so the store needs nothing beyond get and put.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("bin not found")

type Store interface {
	Close(ctx context.Context) error
	Migrate(ctx context.Context) error
	GetBin(ctx context.Context, id string) (json.RawMessage, error)
	PutBin(ctx context.Context, id string, record json.RawMessage) error
}

// MemoryStore keeps bins in a map. Used in tests and for running the
// server without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	bins map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bins: make(map[string]json.RawMessage)}
}

func (s *MemoryStore) Close(ctx context.Context) error {
	_ = ctx
	return nil
}

func (s *MemoryStore) Migrate(ctx context.Context) error {
	_ = ctx
	return nil
}

func (s *MemoryStore) GetBin(_ context.Context, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.bins[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(json.RawMessage, len(record))
	copy(out, record)
	return out, nil
}

func (s *MemoryStore) PutBin(_ context.Context, id string, record json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make(json.RawMessage, len(record))
	copy(stored, record)
	s.bins[id] = stored
	return nil
}

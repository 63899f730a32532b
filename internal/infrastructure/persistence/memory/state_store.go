// Package memory keeps the state document in process memory. It backs tests
// and STATE_BACKEND=memory.
package memory

import (
	"context"
	"sync"

	"github.com/class-bell/class-bell/internal/domain/snapshot"
)

// StateStore stores the encoded document so callers never share maps with it.
type StateStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{}
}

// Load returns the last saved document or an empty one.
func (s *StateStore) Load(ctx context.Context) (snapshot.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return snapshot.Empty(), nil
	}
	return snapshot.Unmarshal(s.data)
}

// Save replaces the stored document.
func (s *StateStore) Save(ctx context.Context, doc snapshot.Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *StateStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Ping always succeeds.
func (s *StateStore) Ping(ctx context.Context) error {
	return nil
}

var _ snapshot.Store = (*StateStore)(nil)

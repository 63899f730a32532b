package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/class-bell/class-bell/internal/domain/snapshot"
)

// DefaultHistory is how many previous documents are kept for manual recovery.
const DefaultHistory = 20

// KV is the subset of Cache the store uses.
type KV interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetVersioned(ctx context.Context, key, historyKey string, value []byte, keep int) error
}

// StateStore keeps the document under one key.
type StateStore struct {
	kv      KV
	id      string
	history int
}

// NewStateStore creates a store for the given state id.
func NewStateStore(kv KV, id string, history int) *StateStore {
	if id == "" {
		id = "default"
	}
	return &StateStore{kv: kv, id: id, history: history}
}

// Load reads the document, or returns an empty one when the key is missing.
func (s *StateStore) Load(ctx context.Context) (snapshot.Document, error) {
	data, err := s.kv.GetBytes(ctx, StateKey(s.id))
	if errors.Is(err, ErrCacheMiss) {
		return snapshot.Empty(), nil
	}
	if err != nil {
		return snapshot.Document{}, fmt.Errorf("load state: %w", err)
	}
	return snapshot.Unmarshal(data)
}

// Save overwrites the document and records it in the history list.
func (s *StateStore) Save(ctx context.Context, doc snapshot.Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.kv.SetVersioned(ctx, StateKey(s.id), StateHistoryKey(s.id), data, s.history); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

var _ snapshot.Store = (*StateStore)(nil)

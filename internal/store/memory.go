package store

import (
	"context"
	"sync"

	"chess-puzzle-bot/internal/model"
)

// MemoryStore keeps the encoded document in process memory.
// Saves still round-trip through JSON so it behaves like the durable backends.
type MemoryStore struct {
	mu    sync.Mutex
	body  []byte
	saves int
	err   error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load decodes the last saved document.
func (s *MemoryStore) Load(_ context.Context) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.body == nil {
		return nil, ErrNotFound
	}
	return decode(s.body)
}

// Save encodes and keeps the document.
func (s *MemoryStore) Save(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	body, err := encode(doc)
	if err != nil {
		return err
	}
	s.body = body
	s.saves++
	return nil
}

// Saves returns how many successful saves happened.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// FailSaves makes subsequent saves return err; nil restores normal behaviour.
func (s *MemoryStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

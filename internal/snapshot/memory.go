package snapshot

import (
	"context"
	"sync"

	"flexilims/pkg/domain"
)

// MemoryStore keeps the document in process memory. Loads and saves deep
// copy so callers never share node pointers with the store.
type MemoryStore struct {
	mu  sync.Mutex
	doc domain.Document
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{doc: domain.Document{}}
}

// Load implements Store.
func (s *MemoryStore) Load(context.Context) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc.Clone()
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

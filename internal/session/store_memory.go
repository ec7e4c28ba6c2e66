package session

import (
	"context"
	"sync"

	"github.com/yndnr/unitrack-go/internal/core/domain"
)

// MemoryStore keeps the encoded record in memory.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context) (*domain.PersistedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	return domain.UnmarshalRecord(s.data)
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, rec *domain.PersistedRecord) error {
	data, err := domain.MarshalRecord(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}

// Raw returns the encoded record, or nil.
func (s *MemoryStore) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

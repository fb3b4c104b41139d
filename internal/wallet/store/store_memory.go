package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"idwallet/pkg/platform/sentinel"
)

// InMemoryRecordStore keeps ciphertext blobs in process memory. Copies on
// both write and read so callers cannot alias the stored blob.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID][]byte
}

func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{records: make(map[uuid.UUID][]byte)}
}

func (s *InMemoryRecordStore) Upsert(_ context.Context, ownerID uuid.UUID, ciphertext []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[ownerID] = append([]byte(nil), ciphertext...)
	return nil
}

func (s *InMemoryRecordStore) Find(_ context.Context, ownerID uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.records[ownerID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

func (s *InMemoryRecordStore) Exists(_ context.Context, ownerID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[ownerID]
	return ok, nil
}

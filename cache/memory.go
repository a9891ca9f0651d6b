package cache

import (
	"context"
	"sync"
)

// MemoryBlobStore is an in-memory BlobStore used by tests and local
// experiments. Safe for concurrent use.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStore creates an empty in-memory blob store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

// Get fetches a blob by content hash, with found=false on miss.
func (s *MemoryBlobStore) Get(_ context.Context, hash string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if data, ok := s.blobs[hash]; ok {
		return append([]byte(nil), data...), true, nil
	}
	return nil, false, nil
}

// Put stores a blob under its content hash.
func (s *MemoryBlobStore) Put(_ context.Context, hash string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[hash] = append([]byte(nil), data...)
	return nil
}

// Delete removes a blob. Absent blobs are a no-op.
func (s *MemoryBlobStore) Delete(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, hash)
	return nil
}

// Evict removes a blob without going through the coordinator, simulating a
// TTL expiry in the ephemeral tier.
func (s *MemoryBlobStore) Evict(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, hash)
}

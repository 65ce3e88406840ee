package storage

import (
	"context"
	"sync"
)

// MemoryStore is a map-backed Backend. Contents are lost when the process
// exits.
type MemoryStore struct {
	mu      sync.RWMutex
	buffers map[string]*memBuffer
}

type memBuffer struct {
	start, end uint64
	committed  bool
	items      map[uint64][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buffers: make(map[string]*memBuffer)}
}

// buffer returns the named buffer, creating it when create is set.
// Callers must hold s.mu (write lock when create is set).
func (s *MemoryStore) buffer(name string, create bool) *memBuffer {
	b, ok := s.buffers[name]
	if !ok && create {
		b = &memBuffer{items: make(map[uint64][]byte)}
		s.buffers[name] = b
	}
	return b
}

func (s *MemoryStore) LoadRange(ctx context.Context, buffer string) (uint64, uint64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.buffer(buffer, false)
	if b == nil || !b.committed {
		return 0, 0, false, nil
	}
	return b.start, b.end, true, nil
}

func (s *MemoryStore) StoreRange(ctx context.Context, buffer string, start, end uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buffer(buffer, true)
	b.start, b.end, b.committed = start, end, true
	return nil
}

func (s *MemoryStore) GetItem(ctx context.Context, buffer string, idx uint64) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.buffer(buffer, false)
	if b == nil {
		return nil, false, nil
	}
	payload, ok := b.items[idx]
	if !ok {
		return nil, false, nil
	}
	return clone(payload), true, nil
}

func (s *MemoryStore) PutItem(ctx context.Context, buffer string, idx uint64, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer(buffer, true).items[idx] = clone(payload)
	return nil
}

func (s *MemoryStore) TakeItem(ctx context.Context, buffer string, idx uint64) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buffer(buffer, false)
	if b == nil {
		return nil, false, nil
	}
	payload, ok := b.items[idx]
	if !ok {
		return nil, false, nil
	}
	delete(b.items, idx)
	return payload, true, nil
}

func (s *MemoryStore) CountItems(ctx context.Context, buffer string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.buffer(buffer, false)
	if b == nil {
		return 0, nil
	}
	return int64(len(b.items)), nil
}

// Close is a no-op kept for the Backend contract.
func (s *MemoryStore) Close() error {
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

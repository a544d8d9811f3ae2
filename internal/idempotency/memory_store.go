package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process claim store for tests and single-node dev
// runs. It does not survive a restart; production setups use Redis.
type MemoryStore struct {
	mu     sync.Mutex
	leases map[string]time.Time
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory claim store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leases: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Acquire claims the key unless an unexpired lease exists.
func (s *MemoryStore) Acquire(ctx context.Context, key string, lease time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.leases[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.leases[key] = now.Add(lease)
	return true, nil
}

// Release drops the claim for the key.
func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, key)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

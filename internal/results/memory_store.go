package results

import (
	"context"
	"sync"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// MemoryStore keeps records in process. Used by tests and single-node
// dev runs; shared deployments use the redis or postgres store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.RiskScore

	// now is replaceable in tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.RiskScore),
		now:     time.Now,
	}
}

// Put writes the record unless a live record already holds the key.
func (s *MemoryStore) Put(ctx context.Context, score *models.RiskScore) (PutOutcome, *models.RiskScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[score.TenantEventID]
	if ok && s.expired(existing) {
		delete(s.records, score.TenantEventID)
		ok = false
	}
	if !ok {
		clone := *score
		s.records[score.TenantEventID] = &clone
		return Stored, nil, nil
	}
	if existing.Same(score) {
		return Identical, existing, nil
	}
	return Conflict, existing, nil
}

// Get returns the live record for the key.
func (s *MemoryStore) Get(ctx context.Context, tenantEventID string) (*models.RiskScore, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[tenantEventID]
	if !ok {
		return nil, false, nil
	}
	if s.expired(existing) {
		delete(s.records, tenantEventID)
		return nil, false, nil
	}
	clone := *existing
	return &clone, true, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) expired(score *models.RiskScore) bool {
	return !score.ExpiresAt.IsZero() && !s.now().Before(score.ExpiresAt)
}

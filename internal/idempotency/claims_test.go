package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

type fakeProbe struct {
	score *models.RiskScore
}

func (f *fakeProbe) Get(ctx context.Context, tenantEventID string) (*models.RiskScore, bool, error) {
	if f.score == nil {
		return nil, false, nil
	}
	return f.score, true, nil
}

func TestAdmitProceedsExactlyOnceForConcurrentDeliveries(t *testing.T) {
	admitter := NewAdmitter(NewMemoryStore(), &fakeProbe{}, time.Minute)

	const deliveries = 16
	var wg sync.WaitGroup
	outcomes := make([]Outcome, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			d, err := admitter.Admit(context.Background(), "tenant-a/evt-1")
			if err != nil {
				t.Errorf("admit failed: %v", err)
				return
			}
			outcomes[idx] = d.Outcome
		}(i)
	}
	wg.Wait()

	proceeds := 0
	for _, o := range outcomes {
		switch o {
		case Proceed:
			proceeds++
		case InFlight:
		default:
			t.Fatalf("unexpected outcome %v", o)
		}
	}
	if proceeds != 1 {
		t.Fatalf("expected exactly one Proceed, got %d", proceeds)
	}
}

func TestAdmitReturnsExistingRecordWithoutClaiming(t *testing.T) {
	store := NewMemoryStore()
	existing := &models.RiskScore{TenantEventID: "tenant-a/evt-2", RiskFinal: 42}
	admitter := NewAdmitter(store, &fakeProbe{score: existing}, time.Minute)

	d, err := admitter.Admit(context.Background(), "tenant-a/evt-2")
	if err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	if d.Outcome != AlreadyProcessed {
		t.Fatalf("expected AlreadyProcessed, got %v", d.Outcome)
	}
	if d.Existing == nil || d.Existing.RiskFinal != 42 {
		t.Fatalf("expected the existing record to be returned, got %+v", d.Existing)
	}

	// The claim must not have been taken for a replayed event.
	claimed, err := store.Acquire(context.Background(), "tenant-a/evt-2", time.Minute)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !claimed {
		t.Fatalf("expected key to be unclaimed after AlreadyProcessed")
	}
}

func TestLeaseExpiryAllowsReclaim(t *testing.T) {
	store := NewMemoryStore()
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	claimed, err := store.Acquire(context.Background(), "tenant-a/evt-3", 30*time.Second)
	if err != nil || !claimed {
		t.Fatalf("expected first acquire to succeed, claimed=%v err=%v", claimed, err)
	}

	current = current.Add(10 * time.Second)
	claimed, err = store.Acquire(context.Background(), "tenant-a/evt-3", 30*time.Second)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if claimed {
		t.Fatalf("expected acquire to fail while the lease is held")
	}

	current = current.Add(21 * time.Second)
	claimed, err = store.Acquire(context.Background(), "tenant-a/evt-3", 30*time.Second)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !claimed {
		t.Fatalf("expected acquire to succeed after lease expiry")
	}
}

func TestReleaseAllowsImmediateReclaim(t *testing.T) {
	store := NewMemoryStore()
	admitter := NewAdmitter(store, &fakeProbe{}, time.Minute)

	d, err := admitter.Admit(context.Background(), "tenant-a/evt-4")
	if err != nil || d.Outcome != Proceed {
		t.Fatalf("expected Proceed, got %v err=%v", d.Outcome, err)
	}

	if err := admitter.Release(context.Background(), "tenant-a/evt-4"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	d, err = admitter.Admit(context.Background(), "tenant-a/evt-4")
	if err != nil || d.Outcome != Proceed {
		t.Fatalf("expected Proceed after release, got %v err=%v", d.Outcome, err)
	}
}

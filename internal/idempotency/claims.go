package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// Outcome is the admission decision for one delivery.
type Outcome int

const (
	// Proceed means this worker now holds the claim and must process.
	Proceed Outcome = iota
	// AlreadyProcessed means a RiskScore exists; return it, do not recompute.
	AlreadyProcessed
	// InFlight means another worker holds the claim; retry after backoff.
	InFlight
)

// String names the outcome for logs.
func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case AlreadyProcessed:
		return "already_processed"
	case InFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// Decision carries the admission outcome and, for AlreadyProcessed, the
// existing record.
type Decision struct {
	Outcome  Outcome
	Existing *models.RiskScore
}

// ClaimStore acquires and releases per-event leases. Acquire is atomic:
// exactly one concurrent caller per key observes true until the lease
// expires or is released.
type ClaimStore interface {
	Acquire(ctx context.Context, key string, lease time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Close() error
}

// ResultProbe looks up a previously persisted RiskScore.
type ResultProbe interface {
	Get(ctx context.Context, tenantEventID string) (*models.RiskScore, bool, error)
}

// Admitter reconciles at-least-once delivery to at-most-once effective
// processing. The claim is taken before any enrichment work begins; a
// crashed worker's claim lapses with the lease, which bounds worst-case
// reprocessing delay.
type Admitter struct {
	claims ClaimStore
	probe  ResultProbe
	lease  time.Duration
}

// NewAdmitter creates an admitter over a claim store and result probe.
func NewAdmitter(claims ClaimStore, probe ResultProbe, lease time.Duration) *Admitter {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	return &Admitter{claims: claims, probe: probe, lease: lease}
}

// Admit decides how to handle one delivery of the given tenant event.
func (a *Admitter) Admit(ctx context.Context, tenantEventID string) (Decision, error) {
	existing, ok, err := a.probe.Get(ctx, tenantEventID)
	if err != nil {
		return Decision{}, fmt.Errorf("probe existing result: %w", err)
	}
	if ok {
		return Decision{Outcome: AlreadyProcessed, Existing: existing}, nil
	}

	claimed, err := a.claims.Acquire(ctx, tenantEventID, a.lease)
	if err != nil {
		return Decision{}, fmt.Errorf("acquire claim: %w", err)
	}
	if !claimed {
		return Decision{Outcome: InFlight}, nil
	}
	return Decision{Outcome: Proceed}, nil
}

// Release drops the claim after the event completed or failed, so a later
// redelivery does not have to wait out the lease.
func (a *Admitter) Release(ctx context.Context, tenantEventID string) error {
	return a.claims.Release(ctx, tenantEventID)
}

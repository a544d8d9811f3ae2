// Package results persists RiskScore records under a conditional-put
// discipline keyed by tenant event id.
package results

import (
	"context"

	"github.com/Raghu-Nath97/secureops360/pkg/models"
)

// PutOutcome classifies a conditional put.
type PutOutcome int

const (
	// Stored means the record was written for the first time.
	Stored PutOutcome = iota
	// Identical means an equal record already existed; the write is a
	// safe recomputation and counts as success.
	Identical
	// Conflict means a different record holds the key. The caller must
	// re-read and treat the event as already processed.
	Conflict
)

// String returns the outcome name for logs.
func (o PutOutcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case Identical:
		return "identical"
	default:
		return "conflict"
	}
}

// Store persists risk scores. Put never overwrites a differing record;
// the existing record is returned alongside Identical and Conflict
// outcomes. Get ignores records past their retention expiry.
type Store interface {
	Put(ctx context.Context, score *models.RiskScore) (PutOutcome, *models.RiskScore, error)
	Get(ctx context.Context, tenantEventID string) (*models.RiskScore, bool, error)
	Close() error
}

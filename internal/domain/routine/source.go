package routine

import (
	"context"

	"github.com/google/uuid"
)

// Query selects which routines a subscription delivers: one provider's
// records for one patient.
type Query struct {
	ProviderID uuid.UUID
	PatientID  uuid.UUID
}

// BatchFunc receives a full-replacement snapshot of the routines matching
// the subscription's query. A batch is never an incremental delta.
type BatchFunc func(batch []*Routine)

// ErrorFunc receives subscription delivery failures. The subscriber treats
// a failing source as contributing zero entries; retry policy belongs to
// the source implementation.
type ErrorFunc func(err error)

// Unsubscribe tears the subscription down. After it returns, no further
// callbacks are invoked.
type Unsubscribe func()

// Source is a push-based supplier of routine batches. Implementations must
// deliver the current full state on subscribe and re-deliver it whenever
// the underlying set changes. Batches for one subscription arrive in
// delivery order; no ordering is guaranteed across subscriptions.
type Source interface {
	Subscribe(ctx context.Context, q Query, onBatch BatchFunc, onError ErrorFunc) (Unsubscribe, error)
}

package source

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/remedyhq/remedy/internal/domain/routine"
)

// StoreSource adapts the routine store into the push-based Source contract:
// each subscription delivers the full current batch for its query on
// subscribe, re-delivers on matching change events, and re-delivers on a
// coarse poll interval in case an event was missed. Every delivery is a
// complete replacement snapshot, never a delta.
type StoreSource struct {
	repo routine.Repository
	bus  Bus
	poll time.Duration
	log  *zap.Logger
}

func NewStoreSource(repo routine.Repository, bus Bus, poll time.Duration, log *zap.Logger) *StoreSource {
	return &StoreSource{repo: repo, bus: bus, poll: poll, log: log}
}

var _ routine.Source = (*StoreSource)(nil)

// Subscribe delivers the initial batch synchronously, so a caller holds the
// current state when Subscribe returns, then streams re-deliveries from a
// goroutine until unsubscribed. After the returned Unsubscribe completes no
// further callbacks run.
func (s *StoreSource) Subscribe(ctx context.Context, q routine.Query, onBatch routine.BatchFunc, onError routine.ErrorFunc) (routine.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	events, stopEvents := s.bus.Subscribe(ctx)

	s.deliver(ctx, q, onBatch, onError)

	done := make(chan struct{})
	go s.run(ctx, q, events, onBatch, onError, done)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			stopEvents()
			<-done
		})
	}
	return unsubscribe, nil
}

func (s *StoreSource) run(ctx context.Context, q routine.Query, events <-chan Event, onBatch routine.BatchFunc, onError routine.ErrorFunc, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Matches(q) {
				s.deliver(ctx, q, onBatch, onError)
			}
		case <-ticker.C:
			s.deliver(ctx, q, onBatch, onError)
		}
	}
}

func (s *StoreSource) deliver(ctx context.Context, q routine.Query, onBatch routine.BatchFunc, onError routine.ErrorFunc) {
	if ctx.Err() != nil {
		return
	}

	batch, err := s.repo.ListForPatient(ctx, q.ProviderID, q.PatientID)
	if err != nil {
		s.log.Warn("routine source delivery failed",
			zap.String("provider_id", q.ProviderID.String()),
			zap.String("patient_id", q.PatientID.String()),
			zap.Error(err),
		)
		onError(err)
		return
	}
	onBatch(batch)
}

package source_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/remedyhq/remedy/internal/domain/routine"
	"github.com/remedyhq/remedy/internal/source"
)

type fakeRepo struct {
	mu      sync.Mutex
	batches map[routine.Query][]*routine.Routine
	err     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{batches: make(map[routine.Query][]*routine.Routine)}
}

func (f *fakeRepo) set(q routine.Query, batch []*routine.Routine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[q] = batch
}

func (f *fakeRepo) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRepo) ListForPatient(ctx context.Context, providerID, patientID uuid.UUID) ([]*routine.Routine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.batches[routine.Query{ProviderID: providerID, PatientID: patientID}], nil
}

func (f *fakeRepo) Create(ctx context.Context, r *routine.Routine) error { panic("not used") }
func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*routine.Routine, error) {
	panic("not used")
}
func (f *fakeRepo) Update(ctx context.Context, r *routine.Routine) error { panic("not used") }
func (f *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error       { panic("not used") }
func (f *fakeRepo) List(ctx context.Context, q *routine.ListRoutinesQuery) (*routine.PagedRoutines, error) {
	panic("not used")
}
func (f *fakeRepo) ProvidersForPatient(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	panic("not used")
}

func mkRoutine(q routine.Query, name string) *routine.Routine {
	return &routine.Routine{
		ID:         uuid.New(),
		ProviderID: q.ProviderID,
		PatientID:  q.PatientID,
		Name:       name,
		Type:       routine.TypeMedication,
		Active:     true,
		Items:      []routine.Item{{Name: name, TimeSlots: []string{"08:00"}}},
	}
}

func TestStoreSource_DeliversInitialBatchSynchronously(t *testing.T) {
	repo := newFakeRepo()
	bus := source.NewMemoryBus()
	src := source.NewStoreSource(repo, bus, time.Hour, zap.NewNop())

	q := routine.Query{ProviderID: uuid.New(), PatientID: uuid.New()}
	repo.set(q, []*routine.Routine{mkRoutine(q, "Metformin")})

	var mu sync.Mutex
	var batches [][]*routine.Routine

	unsub, err := src.Subscribe(context.Background(), q,
		func(batch []*routine.Routine) {
			mu.Lock()
			defer mu.Unlock()
			batches = append(batches, batch)
		},
		func(err error) { t.Errorf("unexpected source error: %v", err) },
	)
	require.NoError(t, err)
	defer unsub()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1, "initial batch must arrive before Subscribe returns")
	assert.Equal(t, "Metformin", batches[0][0].Name)
}

func TestStoreSource_RedeliversOnMatchingEvent(t *testing.T) {
	repo := newFakeRepo()
	bus := source.NewMemoryBus()
	src := source.NewStoreSource(repo, bus, time.Hour, zap.NewNop())

	q := routine.Query{ProviderID: uuid.New(), PatientID: uuid.New()}
	repo.set(q, []*routine.Routine{mkRoutine(q, "Metformin")})

	deliveries := make(chan []*routine.Routine, 8)
	unsub, err := src.Subscribe(context.Background(), q,
		func(batch []*routine.Routine) { deliveries <- batch },
		func(err error) { t.Errorf("unexpected source error: %v", err) },
	)
	require.NoError(t, err)
	defer unsub()

	<-deliveries // initial

	repo.set(q, []*routine.Routine{mkRoutine(q, "Metformin"), mkRoutine(q, "Aspirin")})
	require.NoError(t, bus.Publish(context.Background(), source.Event{ProviderID: q.ProviderID, PatientID: q.PatientID}))

	select {
	case batch := <-deliveries:
		assert.Len(t, batch, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("no re-delivery after change event")
	}
}

func TestStoreSource_IgnoresUnrelatedEvents(t *testing.T) {
	repo := newFakeRepo()
	bus := source.NewMemoryBus()
	src := source.NewStoreSource(repo, bus, time.Hour, zap.NewNop())

	q := routine.Query{ProviderID: uuid.New(), PatientID: uuid.New()}
	repo.set(q, nil)

	deliveries := make(chan []*routine.Routine, 8)
	unsub, err := src.Subscribe(context.Background(), q,
		func(batch []*routine.Routine) { deliveries <- batch },
		func(err error) { t.Errorf("unexpected source error: %v", err) },
	)
	require.NoError(t, err)
	defer unsub()

	<-deliveries // initial

	require.NoError(t, bus.Publish(context.Background(), source.Event{ProviderID: uuid.New(), PatientID: q.PatientID}))

	select {
	case <-deliveries:
		t.Fatal("unrelated event must not trigger a delivery")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStoreSource_ReportsDeliveryErrors(t *testing.T) {
	repo := newFakeRepo()
	bus := source.NewMemoryBus()
	src := source.NewStoreSource(repo, bus, time.Hour, zap.NewNop())

	q := routine.Query{ProviderID: uuid.New(), PatientID: uuid.New()}
	repo.setErr(errors.New("connection refused"))

	errs := make(chan error, 8)
	unsub, err := src.Subscribe(context.Background(), q,
		func(batch []*routine.Routine) { t.Error("no batch expected while the store is failing") },
		func(err error) { errs <- err },
	)
	require.NoError(t, err)
	defer unsub()

	select {
	case err := <-errs:
		assert.ErrorContains(t, err, "connection refused")
	case <-time.After(2 * time.Second):
		t.Fatal("expected the initial delivery failure to be reported")
	}
}

func TestStoreSource_UnsubscribeStopsCallbacks(t *testing.T) {
	repo := newFakeRepo()
	bus := source.NewMemoryBus()
	src := source.NewStoreSource(repo, bus, time.Hour, zap.NewNop())

	q := routine.Query{ProviderID: uuid.New(), PatientID: uuid.New()}
	repo.set(q, nil)

	deliveries := make(chan []*routine.Routine, 8)
	unsub, err := src.Subscribe(context.Background(), q,
		func(batch []*routine.Routine) { deliveries <- batch },
		func(err error) {},
	)
	require.NoError(t, err)

	<-deliveries // initial
	unsub()
	unsub() // idempotent

	require.NoError(t, bus.Publish(context.Background(), source.Event{ProviderID: q.ProviderID, PatientID: q.PatientID}))

	select {
	case <-deliveries:
		t.Fatal("delivery after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryBus_FanOut(t *testing.T) {
	bus := source.NewMemoryBus()

	ch1, stop1 := bus.Subscribe(context.Background())
	ch2, stop2 := bus.Subscribe(context.Background())
	defer stop2()

	ev := source.Event{ProviderID: uuid.New(), PatientID: uuid.New()}
	require.NoError(t, bus.Publish(context.Background(), ev))

	assert.Equal(t, ev, <-ch1)
	assert.Equal(t, ev, <-ch2)

	stop1()
	_, open := <-ch1
	assert.False(t, open, "stopped subscription channel must be closed")
}

package service

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

	"github.com/remedyhq/remedy/internal/domain/patient"
	"github.com/remedyhq/remedy/internal/domain/routine"
	"github.com/remedyhq/remedy/pkg/cache"
	"github.com/remedyhq/remedy/pkg/metrics"
)

// promauto registers into the default registry, so the package shares one
// collector across tests.
var testMetrics = metrics.NewCollector("remedy_service_test")

type stubPatientRepo struct {
	patients map[uuid.UUID]*patient.Patient
}

func (r *stubPatientRepo) Create(ctx context.Context, p *patient.Patient) error { return nil }
func (r *stubPatientRepo) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	if p, ok := r.patients[id]; ok {
		return p, nil
	}
	return nil, patient.ErrPatientNotFound
}
func (r *stubPatientRepo) ExistsByEmail(ctx context.Context, email string, excludeID *uuid.UUID) (bool, error) {
	return false, nil
}
func (r *stubPatientRepo) List(ctx context.Context, q *patient.ListPatientsQuery) (*patient.PagedPatients, error) {
	return &patient.PagedPatients{}, nil
}

type stubRoutineRepo struct {
	mu        sync.Mutex
	providers map[uuid.UUID][]uuid.UUID
}

func (r *stubRoutineRepo) ProvidersForPatient(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.providers[patientID], nil
}
func (r *stubRoutineRepo) Create(ctx context.Context, rt *routine.Routine) error { return nil }
func (r *stubRoutineRepo) GetByID(ctx context.Context, id uuid.UUID) (*routine.Routine, error) {
	return nil, routine.ErrRoutineNotFound
}
func (r *stubRoutineRepo) Update(ctx context.Context, rt *routine.Routine) error { return nil }
func (r *stubRoutineRepo) Delete(ctx context.Context, id uuid.UUID) error        { return nil }
func (r *stubRoutineRepo) List(ctx context.Context, q *routine.ListRoutinesQuery) (*routine.PagedRoutines, error) {
	return &routine.PagedRoutines{}, nil
}
func (r *stubRoutineRepo) ListForPatient(ctx context.Context, providerID, patientID uuid.UUID) ([]*routine.Routine, error) {
	return nil, nil
}

// scriptedSource hands each subscription's callbacks to the test so it can
// drive deliveries and failures directly.
type scriptedSource struct {
	mu      sync.Mutex
	initial map[routine.Query][]*routine.Routine
	subs    map[routine.Query]*scriptedSub
}

type scriptedSub struct {
	onBatch routine.BatchFunc
	onError routine.ErrorFunc
	closed  bool
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{
		initial: make(map[routine.Query][]*routine.Routine),
		subs:    make(map[routine.Query]*scriptedSub),
	}
}

func (s *scriptedSource) Subscribe(ctx context.Context, q routine.Query, onBatch routine.BatchFunc, onError routine.ErrorFunc) (routine.Unsubscribe, error) {
	s.mu.Lock()
	sub := &scriptedSub{onBatch: onBatch, onError: onError}
	s.subs[q] = sub
	batch := s.initial[q]
	s.mu.Unlock()

	onBatch(batch)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		sub.closed = true
	}, nil
}

func (s *scriptedSource) push(q routine.Query, batch []*routine.Routine) {
	s.mu.Lock()
	sub := s.subs[q]
	s.mu.Unlock()
	if sub != nil && !sub.closed {
		sub.onBatch(batch)
	}
}

func (s *scriptedSource) fail(q routine.Query, err error) {
	s.mu.Lock()
	sub := s.subs[q]
	s.mu.Unlock()
	if sub != nil && !sub.closed {
		sub.onError(err)
	}
}

func (s *scriptedSource) isClosed(q routine.Query) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.subs[q]
	return sub != nil && sub.closed
}

func medRoutine(q routine.Query, name string, slots ...string) *routine.Routine {
	return &routine.Routine{
		ID:         uuid.New(),
		ProviderID: q.ProviderID,
		PatientID:  q.PatientID,
		Name:       name,
		Type:       routine.TypeMedication,
		Active:     true,
		Items:      []routine.Item{{Name: name, Frequency: routine.FrequencyDaily, TimeSlots: slots}},
	}
}

type fixture struct {
	svc  *ScheduleService
	src  *scriptedSource
	kv   *cache.MemoryKV
	pid  uuid.UUID
	qA   routine.Query
	qB   routine.Query
	day  time.Time
	repo *stubRoutineRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pid := uuid.New()
	qA := routine.Query{ProviderID: uuid.New(), PatientID: pid}
	qB := routine.Query{ProviderID: uuid.New(), PatientID: pid}

	patients := &stubPatientRepo{patients: map[uuid.UUID]*patient.Patient{
		pid: {ID: pid, FirstName: "Ada", LastName: "Nkosi", Status: patient.StatusActive},
	}}
	repo := &stubRoutineRepo{providers: map[uuid.UUID][]uuid.UUID{
		pid: {qA.ProviderID, qB.ProviderID},
	}}
	src := newScriptedSource()
	kv := cache.NewMemoryKV()
	writer := NewSnapshotWriter(kv, time.Minute, 64, testMetrics, zap.NewNop())
	t.Cleanup(writer.Shutdown)

	svc := NewScheduleService(patients, repo, src, writer, testMetrics, zap.NewNop())
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) // a Tuesday
	svc.now = func() time.Time { return day.Add(10 * time.Hour) }
	t.Cleanup(func() { svc.Close(context.Background()) })

	return &fixture{svc: svc, src: src, kv: kv, pid: pid, qA: qA, qB: qB, day: day, repo: repo}
}

func TestSchedule_MergesProvidersSorted(t *testing.T) {
	f := newFixture(t)
	f.src.initial[f.qA] = []*routine.Routine{medRoutine(f.qA, "Metformin", "8:00", "20:00")}
	f.src.initial[f.qB] = []*routine.Routine{medRoutine(f.qB, "Lisinopril", "1:30 PM")}

	entries, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "08:00", entries[0].Time)
	assert.Equal(t, "13:30", entries[1].Time)
	assert.Equal(t, "20:00", entries[2].Time)
	assert.Equal(t, "Lisinopril", entries[1].Name)
}

func TestSchedule_BatchReplacesPriorContribution(t *testing.T) {
	f := newFixture(t)
	f.src.initial[f.qA] = []*routine.Routine{medRoutine(f.qA, "Metformin", "08:00")}
	f.src.initial[f.qB] = nil

	_, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)

	f.src.push(f.qA, []*routine.Routine{medRoutine(f.qA, "Aspirin", "09:00")})

	entries, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)
	require.Len(t, entries, 1, "new batch must replace the old one, not accumulate")
	assert.Equal(t, "Aspirin", entries[0].Name)
}

func TestSchedule_SourcesAreIndependent(t *testing.T) {
	f := newFixture(t)
	f.src.initial[f.qA] = []*routine.Routine{medRoutine(f.qA, "Metformin", "08:00")}
	f.src.initial[f.qB] = []*routine.Routine{medRoutine(f.qB, "Lisinopril", "09:00")}

	_, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)

	f.src.push(f.qB, nil) // provider B clears its routines

	entries, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Metformin", entries[0].Name)
}

func TestSchedule_FailedSourceContributesNothing(t *testing.T) {
	f := newFixture(t)
	f.src.initial[f.qA] = []*routine.Routine{medRoutine(f.qA, "Metformin", "08:00")}
	f.src.initial[f.qB] = []*routine.Routine{medRoutine(f.qB, "Lisinopril", "09:00")}

	_, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)

	f.src.fail(f.qB, errors.New("store unavailable"))

	entries, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Metformin", entries[0].Name)

	// Delivery after the failure restores the contribution.
	f.src.push(f.qB, []*routine.Routine{medRoutine(f.qB, "Lisinopril", "09:00")})
	entries, err = f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSchedule_PatientViewFiltersToMedications(t *testing.T) {
	f := newFixture(t)
	meal := medRoutine(f.qA, "Breakfast", "07:30")
	meal.Type = routine.TypeMeal
	f.src.initial[f.qA] = []*routine.Routine{meal, medRoutine(f.qA, "Metformin", "08:00")}
	f.src.initial[f.qB] = nil

	caregiver, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)
	assert.Len(t, caregiver, 2)

	patientView, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewPatient)
	require.NoError(t, err)
	require.Len(t, patientView, 1)
	assert.Equal(t, routine.TypeMedication, patientView[0].RoutineType)
}

func TestSchedule_OffDayReadReprojectsWithoutMutatingWatch(t *testing.T) {
	f := newFixture(t)
	weekly := medRoutine(f.qA, "Alendronate", "08:00")
	weekly.Items[0].Frequency = routine.FrequencyWeekly
	f.src.initial[f.qA] = []*routine.Routine{weekly, medRoutine(f.qA, "Metformin", "09:00")}
	f.src.initial[f.qB] = nil

	// Tuesday: weekly item not due.
	entries, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// The preceding Monday: weekly item due, dates stamped for that day.
	monday := f.day.AddDate(0, 0, -1)
	entries, err = f.svc.Schedule(context.Background(), f.pid, monday, ViewCaregiver)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "2024-01-01", e.Date)
	}

	// Watch day is untouched.
	entries, err = f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSchedule_UnknownPatient(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Schedule(context.Background(), uuid.New(), f.day, ViewCaregiver)
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)
}

func TestSchedule_UnknownView(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Schedule(context.Background(), f.pid, f.day, View("admin"))
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestSchedule_Rollover(t *testing.T) {
	f := newFixture(t)
	f.src.initial[f.qA] = []*routine.Routine{medRoutine(f.qA, "Metformin", "08:00")}
	f.src.initial[f.qB] = nil

	entries, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-01-02", entries[0].Date)

	next := f.day.AddDate(0, 0, 1)
	f.svc.now = func() time.Time { return next.Add(time.Minute) }
	f.svc.Rollover()

	entries, err = f.svc.Schedule(context.Background(), f.pid, next, ViewCaregiver)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-01-03", entries[0].Date)
}

func TestSchedule_UnwatchClosesSubscriptions(t *testing.T) {
	f := newFixture(t)
	f.src.initial[f.qA] = []*routine.Routine{medRoutine(f.qA, "Metformin", "08:00")}
	f.src.initial[f.qB] = nil

	_, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)

	f.svc.Unwatch(context.Background(), f.pid)

	assert.True(t, f.src.isClosed(f.qA))
	assert.True(t, f.src.isClosed(f.qB))
}

func TestSchedule_RefreshPicksUpNewProvider(t *testing.T) {
	f := newFixture(t)
	f.src.initial[f.qA] = []*routine.Routine{medRoutine(f.qA, "Metformin", "08:00")}
	f.src.initial[f.qB] = nil

	_, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)

	qC := routine.Query{ProviderID: uuid.New(), PatientID: f.pid}
	f.src.initial[qC] = []*routine.Routine{medRoutine(qC, "Atorvastatin", "21:00")}
	f.repo.mu.Lock()
	f.repo.providers[f.pid] = append(f.repo.providers[f.pid], qC.ProviderID)
	f.repo.mu.Unlock()

	f.svc.Refresh(context.Background(), f.pid)

	entries, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Atorvastatin", entries[1].Name)
}

func TestSnapshotWriter_PublishesMergedSchedule(t *testing.T) {
	f := newFixture(t)
	f.src.initial[f.qA] = []*routine.Routine{medRoutine(f.qA, "Metformin", "08:00")}
	f.src.initial[f.qB] = nil

	_, err := f.svc.Schedule(context.Background(), f.pid, f.day, ViewCaregiver)
	require.NoError(t, err)

	key := snapshotKey(f.pid, f.day)
	require.Eventually(t, func() bool {
		_, err := f.kv.Get(context.Background(), key)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "snapshot should be published asynchronously")

	payload, err := f.kv.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Contains(t, payload, "Metformin")
	assert.Contains(t, payload, "2024-01-02")
}

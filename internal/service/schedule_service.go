package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/remedyhq/remedy/internal/domain/patient"
	"github.com/remedyhq/remedy/internal/domain/routine"
	"github.com/remedyhq/remedy/internal/schedule"
	"github.com/remedyhq/remedy/pkg/metrics"
)

// View selects which routine types a schedule read returns. The patient
// dashboard shows medications only; the caregiver surface shows everything.
type View string

const (
	ViewPatient   View = "patient"
	ViewCaregiver View = "caregiver"
)

var ErrUnknownView = errors.New("unknown schedule view")

func (v View) policy() (schedule.Policy, error) {
	switch v {
	case ViewPatient:
		return schedule.PatientDashboardPolicy, nil
	case ViewCaregiver, "":
		return schedule.CaregiverPolicy, nil
	}
	return schedule.Policy{}, ErrUnknownView
}

// ScheduleService maintains one watch per requested patient: a merger fed by
// per-provider routine subscriptions, kept current for the watch's day. Reads
// for other days re-project the same batches without disturbing watch state.
type ScheduleService struct {
	patientRepo patient.Repository
	routineRepo routine.Repository
	src         routine.Source
	snapshots   *SnapshotWriter
	metrics     *metrics.Collector
	log         *zap.Logger

	projector schedule.Projector
	now       func() time.Time

	// ctx bounds subscription lifetimes to the service, not to the request
	// that happened to create the watch.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	watches map[uuid.UUID]*watch
}

type watch struct {
	patientID uuid.UUID

	initOnce sync.Once
	initErr  error

	mu      sync.Mutex
	day     time.Time
	merger  *schedule.Merger
	batches map[string][]*routine.Routine
	unsubs  map[string]routine.Unsubscribe
}

func NewScheduleService(
	patientRepo patient.Repository,
	routineRepo routine.Repository,
	src routine.Source,
	snapshots *SnapshotWriter,
	m *metrics.Collector,
	log *zap.Logger,
) *ScheduleService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ScheduleService{
		patientRepo: patientRepo,
		routineRepo: routineRepo,
		src:         src,
		snapshots:   snapshots,
		metrics:     m,
		log:         log,
		projector:   schedule.Projector{Policy: schedule.CaregiverPolicy},
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		watches:     make(map[uuid.UUID]*watch),
	}
}

// Schedule returns the patient's merged, sorted schedule for the given day,
// filtered to the requested view. The first call for a patient establishes
// the watch; subsequent calls read the live merged state.
func (s *ScheduleService) Schedule(ctx context.Context, patientID uuid.UUID, day time.Time, view View) ([]schedule.Entry, error) {
	policy, err := view.policy()
	if err != nil {
		return nil, err
	}

	w, err := s.ensureWatch(ctx, patientID)
	if err != nil {
		return nil, err
	}

	day = dateOnly(day)

	w.mu.Lock()
	var entries []schedule.Entry
	if day.Equal(w.day) {
		entries = w.merger.Snapshot()
	} else {
		// Off-day reads re-project the latest batches for the requested
		// date, in source registration order, without touching watch state.
		for _, sourceID := range w.merger.Sources() {
			projected := s.projector.ProjectAll(w.batches[sourceID], day)
			for i := range projected {
				projected[i].SourceID = sourceID
			}
			entries = append(entries, projected...)
		}
	}
	w.mu.Unlock()

	filtered := entries[:0]
	for _, e := range entries {
		if policy.Admits(e.RoutineType) {
			filtered = append(filtered, e)
		}
	}
	schedule.SortEntries(filtered)
	return filtered, nil
}

// Refresh subscribes an existing watch to any providers that appeared since
// the watch was established. Patients without a watch are ignored; their
// first schedule read picks the new provider up.
func (s *ScheduleService) Refresh(ctx context.Context, patientID uuid.UUID) {
	s.mu.Lock()
	w, ok := s.watches[patientID]
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.attachProviders(ctx, w); err != nil {
		s.log.Warn("failed to refresh schedule watch",
			zap.String("patient_id", patientID.String()),
			zap.Error(err),
		)
	}
}

// Unwatch tears the patient's watch down: every subscription is closed and
// the published snapshot invalidated, so no stale entries survive.
func (s *ScheduleService) Unwatch(ctx context.Context, patientID uuid.UUID) {
	s.mu.Lock()
	w, ok := s.watches[patientID]
	if ok {
		delete(s.watches, patientID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.teardown(ctx, w)
	s.metrics.ActiveWatches.Dec()
}

// Rollover re-projects every watch onto the current day. Wired to the
// midnight cron so dashboards left open overnight flip to the new date.
func (s *ScheduleService) Rollover() {
	day := dateOnly(s.now())

	s.mu.Lock()
	watches := make([]*watch, 0, len(s.watches))
	for _, w := range s.watches {
		watches = append(watches, w)
	}
	s.mu.Unlock()

	for _, w := range watches {
		w.mu.Lock()
		if day.Equal(w.day) {
			w.mu.Unlock()
			continue
		}
		w.day = day
		fresh := schedule.NewMerger(s.projector)
		var merged []schedule.Entry
		for _, sourceID := range w.merger.Sources() {
			merged = fresh.Ingest(sourceID, w.batches[sourceID], day)
		}
		w.merger = fresh
		patientID := w.patientID
		w.mu.Unlock()

		s.snapshots.Publish(snapshotKey(patientID, day), schedule.Sorted(merged))
	}

	s.log.Info("schedule rollover complete",
		zap.String("day", day.Format(schedule.DateLayout)),
		zap.Int("watches", len(watches)),
	)
}

// Close tears down every watch. Called on shutdown.
func (s *ScheduleService) Close(ctx context.Context) {
	s.cancel()

	s.mu.Lock()
	watches := make([]*watch, 0, len(s.watches))
	for id, w := range s.watches {
		watches = append(watches, w)
		delete(s.watches, id)
	}
	s.mu.Unlock()

	for _, w := range watches {
		s.teardown(ctx, w)
		s.metrics.ActiveWatches.Dec()
	}
}

func (s *ScheduleService) ensureWatch(ctx context.Context, patientID uuid.UUID) (*watch, error) {
	s.mu.Lock()
	w, ok := s.watches[patientID]
	if !ok {
		w = &watch{
			patientID: patientID,
			day:       dateOnly(s.now()),
			merger:    schedule.NewMerger(s.projector),
			batches:   make(map[string][]*routine.Routine),
			unsubs:    make(map[string]routine.Unsubscribe),
		}
		s.watches[patientID] = w
		s.metrics.ActiveWatches.Inc()
	}
	s.mu.Unlock()

	w.initOnce.Do(func() {
		if _, err := s.patientRepo.GetByID(ctx, patientID); err != nil {
			w.initErr = err
			return
		}
		w.initErr = s.attachProviders(ctx, w)
	})
	if w.initErr != nil {
		s.mu.Lock()
		if s.watches[patientID] == w {
			delete(s.watches, patientID)
			s.metrics.ActiveWatches.Dec()
		}
		s.mu.Unlock()
		return nil, w.initErr
	}
	return w, nil
}

// attachProviders subscribes the watch to every provider currently holding
// routines for the patient. Existing subscriptions are left alone.
func (s *ScheduleService) attachProviders(ctx context.Context, w *watch) error {
	providers, err := s.routineRepo.ProvidersForPatient(ctx, w.patientID)
	if err != nil {
		return fmt.Errorf("listing providers: %w", err)
	}

	for _, providerID := range providers {
		if err := s.subscribe(w, providerID); err != nil {
			return fmt.Errorf("subscribing to provider %s: %w", providerID, err)
		}
	}
	return nil
}

func (s *ScheduleService) subscribe(w *watch, providerID uuid.UUID) error {
	sourceID := "provider:" + providerID.String()

	w.mu.Lock()
	_, exists := w.unsubs[sourceID]
	w.mu.Unlock()
	if exists {
		return nil
	}

	q := routine.Query{ProviderID: providerID, PatientID: w.patientID}
	unsub, err := s.src.Subscribe(s.ctx, q,
		func(batch []*routine.Routine) { s.ingest(w, sourceID, batch) },
		func(err error) { s.sourceError(w, sourceID, err) },
	)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if _, raced := w.unsubs[sourceID]; raced {
		w.mu.Unlock()
		unsub()
		return nil
	}
	w.unsubs[sourceID] = unsub
	w.mu.Unlock()

	s.metrics.ActiveSubscriptions.Inc()
	return nil
}

// ingest is the sole write path into a watch's merged state. The batch
// replaces the source's previous contribution in full.
func (s *ScheduleService) ingest(w *watch, sourceID string, batch []*routine.Routine) {
	w.mu.Lock()
	w.batches[sourceID] = batch
	day := w.day
	merged := w.merger.Ingest(sourceID, batch, day)
	w.mu.Unlock()

	own := 0
	for _, e := range merged {
		if e.SourceID == sourceID {
			own++
		}
	}
	s.metrics.BatchesIngestedTotal.Inc()
	s.metrics.EntriesProjectedTotal.Add(float64(own))

	s.snapshots.Publish(snapshotKey(w.patientID, day), schedule.Sorted(merged))
}

// sourceError applies the failure contract: a failing source contributes
// zero entries until it delivers again.
func (s *ScheduleService) sourceError(w *watch, sourceID string, err error) {
	s.metrics.SourceErrorsTotal.Inc()
	s.log.Warn("schedule source failed, dropping its contribution",
		zap.String("patient_id", w.patientID.String()),
		zap.String("source_id", sourceID),
		zap.Error(err),
	)

	w.mu.Lock()
	delete(w.batches, sourceID)
	day := w.day
	merged := w.merger.Remove(sourceID)
	w.mu.Unlock()

	s.snapshots.Publish(snapshotKey(w.patientID, day), schedule.Sorted(merged))
}

func (s *ScheduleService) teardown(ctx context.Context, w *watch) {
	w.mu.Lock()
	unsubs := make([]routine.Unsubscribe, 0, len(w.unsubs))
	for _, unsub := range w.unsubs {
		unsubs = append(unsubs, unsub)
	}
	w.unsubs = make(map[string]routine.Unsubscribe)
	day := w.day
	w.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
		s.metrics.ActiveSubscriptions.Dec()
	}

	s.snapshots.Invalidate(ctx, snapshotKey(w.patientID, day))
}

func snapshotKey(patientID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("remedy:schedule:%s:%s", patientID, day.Format(schedule.DateLayout))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

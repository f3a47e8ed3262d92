package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/remedyhq/remedy/internal/domain/patient"
	"github.com/remedyhq/remedy/internal/domain/routine"
	"github.com/remedyhq/remedy/internal/source"
	"github.com/remedyhq/remedy/pkg/metrics"
)

// RoutineService owns routine CRUD. Every mutation publishes a change event
// so subscribed schedule watches re-deliver the affected provider/patient
// batch, and nudges the schedule service in case the mutation introduced a
// provider the watch has not seen yet.
type RoutineService struct {
	repo        routine.Repository
	patientRepo patient.Repository
	bus         source.Bus
	schedules   *ScheduleService
	metrics     *metrics.Collector
	log         *zap.Logger
}

func NewRoutineService(
	repo routine.Repository,
	patientRepo patient.Repository,
	bus source.Bus,
	schedules *ScheduleService,
	m *metrics.Collector,
	log *zap.Logger,
) *RoutineService {
	return &RoutineService{
		repo:        repo,
		patientRepo: patientRepo,
		bus:         bus,
		schedules:   schedules,
		metrics:     m,
		log:         log,
	}
}

func (s *RoutineService) CreateRoutine(ctx context.Context, cmd *routine.CreateRoutineCommand) (*routine.Routine, error) {
	if err := validateCreateRoutine(cmd); err != nil {
		return nil, err
	}

	if _, err := s.patientRepo.GetByID(ctx, cmd.PatientID); err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}

	r := &routine.Routine{
		PatientID:  cmd.PatientID,
		ProviderID: cmd.ProviderID,
		Name:       strings.TrimSpace(cmd.Name),
		Type:       cmd.Type,
		Active:     cmd.Active,
		Items:      cmd.Items,
		CreatedBy:  cmd.CreatedBy,
	}

	if err := s.repo.Create(ctx, r); err != nil {
		s.log.Error("failed to create routine", zap.Error(err))
		return nil, fmt.Errorf("creating routine: %w", err)
	}

	s.metrics.RoutinesCreatedTotal.Inc()
	s.notifyChange(ctx, r)

	return r, nil
}

func (s *RoutineService) GetRoutine(ctx context.Context, id uuid.UUID) (*routine.Routine, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RoutineService) UpdateRoutine(ctx context.Context, id uuid.UUID, cmd *routine.UpdateRoutineCommand) (*routine.Routine, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if cmd.Name != nil {
		r.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Type != nil {
		if !cmd.Type.IsValid() {
			return nil, routine.ErrInvalidType
		}
		r.Type = *cmd.Type
	}
	if cmd.Active != nil {
		r.Active = *cmd.Active
	}
	if cmd.Items != nil {
		if len(*cmd.Items) == 0 {
			return nil, routine.ErrNoItems
		}
		r.Items = *cmd.Items
		// Updates write the current shape; the legacy embedded item is
		// cleared so EffectiveItems reads the new slice.
		r.Item = nil
	}

	if err := s.repo.Update(ctx, r); err != nil {
		s.log.Error("failed to update routine", zap.String("routine_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("updating routine: %w", err)
	}

	s.notifyChange(ctx, r)
	return r, nil
}

func (s *RoutineService) DeleteRoutine(ctx context.Context, id uuid.UUID) error {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.log.Error("failed to delete routine", zap.String("routine_id", id.String()), zap.Error(err))
		return fmt.Errorf("deleting routine: %w", err)
	}

	s.notifyChange(ctx, r)
	return nil
}

func (s *RoutineService) ListRoutines(ctx context.Context, q *routine.ListRoutinesQuery) (*routine.PagedRoutines, error) {
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.repo.List(ctx, q)
}

func (s *RoutineService) notifyChange(ctx context.Context, r *routine.Routine) {
	ev := source.Event{ProviderID: r.ProviderID, PatientID: r.PatientID}
	if err := s.bus.Publish(ctx, ev); err != nil {
		// Best-effort: the poll safety net re-delivers eventually.
		s.log.Warn("failed to publish routine change event",
			zap.String("routine_id", r.ID.String()),
			zap.Error(err),
		)
	}
	if s.schedules != nil {
		s.schedules.Refresh(ctx, r.PatientID)
	}
}

func validateCreateRoutine(cmd *routine.CreateRoutineCommand) error {
	var errs []string

	if cmd.PatientID == uuid.Nil {
		errs = append(errs, "patient_id is required")
	}
	if cmd.ProviderID == uuid.Nil {
		errs = append(errs, "provider_id is required")
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}

	if !cmd.Type.IsValid() {
		return routine.ErrInvalidType
	}
	if len(cmd.Items) == 0 {
		return routine.ErrNoItems
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/remedyhq/remedy/internal/domain/routine"
)

type RoutineRepository struct {
	db *gorm.DB
}

func NewRoutineRepository(db *gorm.DB) *RoutineRepository {
	return &RoutineRepository{db: db}
}

var _ routine.Repository = (*RoutineRepository)(nil)

func (r *RoutineRepository) Create(ctx context.Context, rt *routine.Routine) error {
	if err := r.db.WithContext(ctx).Create(rt).Error; err != nil {
		return fmt.Errorf("inserting routine: %w", err)
	}
	return nil
}

func (r *RoutineRepository) GetByID(ctx context.Context, id uuid.UUID) (*routine.Routine, error) {
	var rt routine.Routine
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&rt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, routine.ErrRoutineNotFound
		}
		return nil, fmt.Errorf("querying routine: %w", err)
	}
	return &rt, nil
}

func (r *RoutineRepository) Update(ctx context.Context, rt *routine.Routine) error {
	res := r.db.WithContext(ctx).
		Model(&routine.Routine{}).
		Where("id = ? AND deleted_at IS NULL", rt.ID).
		Updates(map[string]any{
			"name":   rt.Name,
			"type":   rt.Type,
			"active": rt.Active,
			"items":  rt.Items,
			"item":   rt.Item,
		})
	if res.Error != nil {
		return fmt.Errorf("updating routine: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return routine.ErrRoutineNotFound
	}
	return nil
}

func (r *RoutineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&routine.Routine{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", gorm.Expr("NOW()"))
	if res.Error != nil {
		return fmt.Errorf("deleting routine: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return routine.ErrRoutineNotFound
	}
	return nil
}

func (r *RoutineRepository) List(ctx context.Context, q *routine.ListRoutinesQuery) (*routine.PagedRoutines, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}

	query := r.db.WithContext(ctx).Model(&routine.Routine{}).Where("deleted_at IS NULL")
	if q.PatientID != nil {
		query = query.Where("patient_id = ?", *q.PatientID)
	}
	if q.ProviderID != nil {
		query = query.Where("provider_id = ?", *q.ProviderID)
	}
	if q.ActiveOnly {
		query = query.Where("active")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting routines: %w", err)
	}

	var routines []*routine.Routine
	err := query.
		Order("created_at ASC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&routines).Error
	if err != nil {
		return nil, fmt.Errorf("listing routines: %w", err)
	}

	totalPages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	return &routine.PagedRoutines{
		Routines:   routines,
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (r *RoutineRepository) ListForPatient(ctx context.Context, providerID, patientID uuid.UUID) ([]*routine.Routine, error) {
	var routines []*routine.Routine
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND patient_id = ? AND deleted_at IS NULL", providerID, patientID).
		Order("created_at ASC").
		Find(&routines).Error
	if err != nil {
		return nil, fmt.Errorf("listing routines for patient: %w", err)
	}
	return routines, nil
}

func (r *RoutineRepository) ProvidersForPatient(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	var providers []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&routine.Routine{}).
		Distinct("provider_id").
		Where("patient_id = ? AND deleted_at IS NULL", patientID).
		Pluck("provider_id", &providers).Error
	if err != nil {
		return nil, fmt.Errorf("listing providers for patient: %w", err)
	}
	return providers, nil
}

package routine

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Routine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Routine, error)
	Update(ctx context.Context, r *Routine) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q *ListRoutinesQuery) (*PagedRoutines, error)

	// ListForPatient returns the current full set of routines one provider
	// maintains for one patient, in stable creation order. Sources deliver
	// exactly this set as a batch snapshot.
	ListForPatient(ctx context.Context, providerID, patientID uuid.UUID) ([]*Routine, error)

	// ProvidersForPatient returns the distinct providers that currently
	// have at least one routine on record for the patient.
	ProvidersForPatient(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)
}

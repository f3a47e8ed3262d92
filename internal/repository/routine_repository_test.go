package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/remedyhq/remedy/internal/domain/routine"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	return db, mock
}

func TestRoutineRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoutineRepository(db)

	id := uuid.New()
	patientID := uuid.New()
	providerID := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "patient_id", "provider_id", "name", "type", "active", "items"}).
		AddRow(id.String(), patientID.String(), providerID.String(), "Morning meds", "medication", true,
			`[{"name":"Metformin","dosage":"500mg","frequency":"twice-daily","timeSlots":["08:00","20:00"]}]`)

	mock.ExpectQuery(`SELECT \* FROM "care"\."routines"`).WillReturnRows(rows)

	rt, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, rt.ID)
	assert.Equal(t, routine.TypeMedication, rt.Type)
	require.Len(t, rt.Items, 1)
	assert.Equal(t, []string{"08:00", "20:00"}, rt.Items[0].TimeSlots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutineRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoutineRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "care"\."routines"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, routine.ErrRoutineNotFound)
}

func TestRoutineRepository_ListForPatient(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoutineRepository(db)

	providerID := uuid.New()
	patientID := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "patient_id", "provider_id", "name", "type", "active", "items"}).
		AddRow(uuid.New().String(), patientID.String(), providerID.String(), "Morning meds", "medication", true, `[]`).
		AddRow(uuid.New().String(), patientID.String(), providerID.String(), "Walks", "exercise", true, `[]`)

	mock.ExpectQuery(`SELECT \* FROM "care"\."routines"`).WillReturnRows(rows)

	batch, err := repo.ListForPatient(context.Background(), providerID, patientID)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "Morning meds", batch[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutineRepository_ProvidersForPatient(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRoutineRepository(db)

	provA := uuid.New()
	provB := uuid.New()

	rows := sqlmock.NewRows([]string{"provider_id"}).
		AddRow(provA.String()).
		AddRow(provB.String())

	mock.ExpectQuery(`SELECT DISTINCT "provider_id" FROM "care"\."routines"`).WillReturnRows(rows)

	providers, err := repo.ProvidersForPatient(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{provA, provB}, providers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

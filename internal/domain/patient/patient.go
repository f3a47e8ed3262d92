package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a patient record.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Patient struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt *time.Time `gorm:"index" json:"-"` // Soft Delete

	FirstName   string    `gorm:"column:first_name;type:varchar(100);not null" json:"firstName"`
	LastName    string    `gorm:"column:last_name;type:varchar(100);not null" json:"lastName"`
	DateOfBirth time.Time `gorm:"column:date_of_birth" json:"dateOfBirth"`

	Email string `gorm:"column:email;type:varchar(255);uniqueIndex" json:"email"`
	Phone string `gorm:"column:phone;type:varchar(20)" json:"phone,omitempty"`

	// Caregiver the patient is primarily enrolled with. Routines may still
	// arrive from any provider's record set.
	CaregiverID *uuid.UUID `gorm:"column:caregiver_id;type:uuid;index" json:"caregiverId,omitempty"`

	Status Status `gorm:"column:status;type:varchar(20);default:'active';index" json:"status"`
	Notes  string `gorm:"column:notes;type:text" json:"-"` // PHI

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null" json:"-"`
}

func (Patient) TableName() string {
	return "care.patients"
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p *Patient) IsActive() bool {
	return p.Status == StatusActive && p.DeletedAt == nil
}

type CreatePatientCommand struct {
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Email       string
	Phone       string
	CaregiverID *uuid.UUID
	Notes       string
	CreatedBy   uuid.UUID
}

// ListPatientsQuery defines filtering and pagination for patient list queries.
type ListPatientsQuery struct {
	Search      string // matches on name
	Status      *Status
	CaregiverID *uuid.UUID
	Page        int
	PageSize    int
}

type PagedPatients struct {
	Patients   []*Patient
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

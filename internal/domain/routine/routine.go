package routine

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeMedication Type = "medication"
	TypeMeal       Type = "meal"
	TypeExercise   Type = "exercise"
	TypeGeneral    Type = "general"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeMedication, TypeMeal, TypeExercise, TypeGeneral:
		return true
	}
	return false
}

// Frequency is the recurrence descriptor controlling which days an item
// applies and, informally, how many time slots it usually carries.
type Frequency string

const (
	FrequencyDaily           Frequency = "daily"
	FrequencyTwiceDaily      Frequency = "twice-daily"
	FrequencyThreeTimesDaily Frequency = "three-times-daily"
	FrequencyWeekly          Frequency = "weekly"
	FrequencyAsNeeded        Frequency = "as-needed"
)

func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyTwiceDaily, FrequencyThreeTimesDaily, FrequencyWeekly, FrequencyAsNeeded:
		return true
	}
	return false
}

// Canonical maps unrecognized frequency strings onto daily.
func (f Frequency) Canonical() Frequency {
	if f.IsValid() {
		return f
	}
	return FrequencyDaily
}

// Item is one schedulable thing within a routine: a medication dose, a
// meal, an exercise or a general activity.
type Item struct {
	Name         string    `json:"name"`
	Dosage       string    `json:"dosage,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	Frequency    Frequency `json:"frequency,omitempty"`

	// TimeSlots holds raw caregiver-entered time strings. Entries may be
	// empty or malformed; the schedule engine filters and normalizes them.
	TimeSlots []string `json:"timeSlots,omitempty"`
	// Time is the legacy single-slot field, used when TimeSlots is absent.
	Time string `json:"time,omitempty"`

	// Food-timing flags are informative, not mutually exclusive. Malformed
	// records may set more than one; they are passed through as stored.
	WithFood   bool `json:"withFood,omitempty"`
	BeforeFood bool `json:"beforeFood,omitempty"`
	AfterFood  bool `json:"afterFood,omitempty"`
}

type Routine struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	PatientID  uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index" json:"patientId"`
	ProviderID uuid.UUID `gorm:"column:provider_id;type:uuid;not null;index" json:"providerId"`

	Name   string `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Type   Type   `gorm:"column:type;type:varchar(30);not null;default:'general';index" json:"type"`
	Active bool   `gorm:"column:active;not null;default:true;index" json:"active"`

	Items []Item `gorm:"column:items;serializer:json" json:"items,omitempty"`
	// Item carries the legacy embedded single-item shape still present in
	// older records. EffectiveItems folds both shapes together.
	Item *Item `gorm:"column:item;serializer:json" json:"item,omitempty"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null" json:"-"`
}

func (Routine) TableName() string {
	return "care.routines"
}

// EffectiveItems maps both record shapes onto one canonical item slice.
// Current records carry Items; legacy records carry a single embedded Item.
// A routine with neither is structurally empty and yields nil.
func (r *Routine) EffectiveItems() []Item {
	if len(r.Items) > 0 {
		return r.Items
	}
	if r.Item != nil {
		return []Item{*r.Item}
	}
	return nil
}

func (r *Routine) IsActive() bool {
	return r.Active && r.DeletedAt == nil
}

// DisplayName falls back to the first item's name when the routine itself
// is unnamed, matching how caregivers label single-medication routines.
func (r *Routine) DisplayName() string {
	if n := strings.TrimSpace(r.Name); n != "" {
		return n
	}
	for _, item := range r.EffectiveItems() {
		if n := strings.TrimSpace(item.Name); n != "" {
			return n
		}
	}
	return "Routine"
}

type CreateRoutineCommand struct {
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	Name       string
	Type       Type
	Active     bool
	Items      []Item
	CreatedBy  uuid.UUID
}

type UpdateRoutineCommand struct {
	Name      *string
	Type      *Type
	Active    *bool
	Items     *[]Item
	UpdatedBy uuid.UUID
}

// ListRoutinesQuery defines filtering for routine list queries.
type ListRoutinesQuery struct {
	PatientID  *uuid.UUID
	ProviderID *uuid.UUID
	ActiveOnly bool
	Page       int
	PageSize   int
}

type PagedRoutines struct {
	Routines   []*Routine
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

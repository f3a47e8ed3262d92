package schedule

import (
	"time"

	"github.com/remedyhq/remedy/internal/domain/routine"
)

// Policy is the view-level filter on routine types. The patient-facing
// dashboard admits medications only; the caregiver routine viewer admits
// everything. The type filter is a property of the consuming view, not of
// projection itself, so it is a parameter here.
type Policy struct {
	// Types lists the admitted routine types. Empty admits all types.
	Types []routine.Type
}

// PatientDashboardPolicy is the medication-only view used by the patient
// "today's medications" surface.
var PatientDashboardPolicy = Policy{Types: []routine.Type{routine.TypeMedication}}

// CaregiverPolicy admits every routine type.
var CaregiverPolicy = Policy{}

func (p Policy) Admits(t routine.Type) bool {
	if len(p.Types) == 0 {
		return true
	}
	for _, allowed := range p.Types {
		if t == allowed {
			return true
		}
	}
	return false
}

// Projector expands one routine into zero or more schedule entries for a
// target date.
type Projector struct {
	Policy Policy
}

// Project is pure with respect to the routine and the target day: it never
// reads the ambient clock, so projecting the same inputs twice yields
// byte-identical entries. Inactive routines, routines outside the policy,
// and structurally empty routines yield nothing; items not due on the day
// are skipped whole.
func (p Projector) Project(r *routine.Routine, day time.Time) []Entry {
	if r == nil || !r.IsActive() || !p.Policy.Admits(r.Type) {
		return nil
	}

	items := r.EffectiveItems()
	if len(items) == 0 {
		return nil
	}

	var entries []Entry
	for itemIndex, item := range items {
		if !AppliesOn(item.Frequency, day) {
			continue
		}
		for slotIndex, raw := range Occurrences(item) {
			entries = append(entries, Entry{
				ID:           entryID(r.ID.String(), day, itemIndex, slotIndex),
				PatientID:    r.PatientID.String(),
				RoutineID:    r.ID.String(),
				RoutineName:  r.DisplayName(),
				RoutineType:  r.Type,
				Name:         item.Name,
				Dosage:       item.Dosage,
				Time:         NormalizeTime(raw),
				Date:         day.Format(DateLayout),
				Frequency:    item.Frequency.Canonical(),
				Instructions: item.Instructions,
				WithFood:     item.WithFood,
				BeforeFood:   item.BeforeFood,
				AfterFood:    item.AfterFood,
			})
		}
	}
	return entries
}

// ProjectAll expands a full batch in batch order.
func (p Projector) ProjectAll(batch []*routine.Routine, day time.Time) []Entry {
	var entries []Entry
	for _, r := range batch {
		entries = append(entries, p.Project(r, day)...)
	}
	return entries
}

// Package schedule turns caregiver-authored routines into a deduplicated,
// time-ordered single-day schedule. Projection is a pure function of the
// routine set plus an explicit target date; per-source merge state lives in
// Merger and nowhere else.
package schedule

import (
	"fmt"
	"time"

	"github.com/remedyhq/remedy/internal/domain/routine"
)

// DateLayout is the canonical date form embedded in entry identifiers.
const DateLayout = "2006-01-02"

// Entry is one concrete, dated, time-stamped occurrence derived from a
// routine item. Entries are ephemeral: rebuilt on every projection pass,
// never mutated in place, never persisted by the engine.
type Entry struct {
	// ID is derived from (routineID, itemIndex, slotIndex, targetDate), so
	// re-projecting unchanged inputs yields identical identifiers.
	ID string `json:"id"`

	// SourceID names the source batch that produced the entry. It is used
	// for per-source replacement and is not a presentation field.
	SourceID string `json:"-"`

	PatientID   string       `json:"patientId"`
	RoutineID   string       `json:"routineId"`
	RoutineName string       `json:"routineName"`
	RoutineType routine.Type `json:"routineType"`

	Name   string `json:"name"`
	Dosage string `json:"dosage,omitempty"`

	// Time is the canonical 24-hour HH:MM slot. Zero-padded, so plain
	// string comparison orders entries chronologically.
	Time string `json:"time"`
	Date string `json:"date"`

	Frequency    routine.Frequency `json:"frequency"`
	Instructions string            `json:"instructions,omitempty"`

	WithFood   bool `json:"withFood,omitempty"`
	BeforeFood bool `json:"beforeFood,omitempty"`
	AfterFood  bool `json:"afterFood,omitempty"`
}

func entryID(routineID string, day time.Time, itemIndex, slotIndex int) string {
	return fmt.Sprintf("%s_%s_%d_%d", routineID, day.Format(DateLayout), itemIndex, slotIndex)
}

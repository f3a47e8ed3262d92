package schedule

import (
	"strings"
	"time"

	"github.com/remedyhq/remedy/internal/domain/routine"
)

// AppliesOn decides whether an item with the given frequency is due on the
// target day. The daily family and as-needed always apply; their cardinality
// difference is expressed purely through how many time slots the item
// carries. Weekly items apply on Mondays only: the record shape carries no
// day-of-week field, so the reference weekday is a documented placeholder.
// Unrecognized frequencies are treated as daily.
func AppliesOn(f routine.Frequency, day time.Time) bool {
	switch f.Canonical() {
	case routine.FrequencyWeekly:
		return day.Weekday() == time.Monday
	default:
		return true
	}
}

// Occurrences returns the raw time strings an item produces for a day it
// applies on, in slot order: the non-empty TimeSlots, else the legacy
// single Time field, else one default slot.
func Occurrences(item routine.Item) []string {
	slots := make([]string, 0, len(item.TimeSlots))
	for _, s := range item.TimeSlots {
		if strings.TrimSpace(s) != "" {
			slots = append(slots, s)
		}
	}
	if len(slots) > 0 {
		return slots
	}
	if strings.TrimSpace(item.Time) != "" {
		return []string{item.Time}
	}
	return []string{DefaultTime}
}

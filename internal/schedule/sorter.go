package schedule

import "sort"

// SortEntries orders entries by canonical time-of-day, breaking ties by
// derived ID so the order is total and deterministic. Zero-padded HH:MM
// strings compare correctly as times. No entries are dropped or merged.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Time != entries[j].Time {
			return entries[i].Time < entries[j].Time
		}
		return entries[i].ID < entries[j].ID
	})
}

// Sorted returns a sorted copy, leaving the input untouched.
func Sorted(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	SortEntries(out)
	return out
}

package schedule

import (
	"sync"
	"time"

	"github.com/remedyhq/remedy/internal/domain/routine"
)

// Merger owns the only mutable state in the engine: a mapping from source
// identifier to that source's most recently derived entries. A batch for a
// source always replaces the source's prior contribution in full; batches
// from different sources may interleave arbitrarily and the merged result
// is correct regardless of arrival order. Sources never merge beyond
// concatenation -- the same logical routine visible through two sources is
// deliberately kept twice (see DESIGN.md).
type Merger struct {
	projector Projector

	mu      sync.Mutex
	order   []string // source registration order
	batches map[string][]Entry
}

func NewMerger(projector Projector) *Merger {
	return &Merger{
		projector: projector,
		batches:   make(map[string][]Entry),
	}
}

// Ingest projects the batch for the target day, replaces the source's
// stored contribution wholesale, and returns the merged result: all
// per-source entry sequences concatenated in source-registration order,
// then within-source order. Sorting is a separate concern.
func (m *Merger) Ingest(sourceID string, batch []*routine.Routine, day time.Time) []Entry {
	entries := m.projector.ProjectAll(batch, day)
	for i := range entries {
		entries[i].SourceID = sourceID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.batches[sourceID]; !seen {
		m.order = append(m.order, sourceID)
	}
	m.batches[sourceID] = entries

	return m.mergedLocked()
}

// Remove drops a source's contribution entirely, as on explicit
// unsubscribe, and returns the recomputed merged result. Without this,
// a torn-down source would leak stale entries indefinitely.
func (m *Merger) Remove(sourceID string) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.batches[sourceID]; seen {
		delete(m.batches, sourceID)
		for i, id := range m.order {
			if id == sourceID {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}

	return m.mergedLocked()
}

// Snapshot returns the current merged result without mutating anything.
func (m *Merger) Snapshot() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mergedLocked()
}

// Sources returns the currently registered source identifiers in
// registration order.
func (m *Merger) Sources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *Merger) mergedLocked() []Entry {
	total := 0
	for _, entries := range m.batches {
		total += len(entries)
	}
	merged := make([]Entry, 0, total)
	for _, sourceID := range m.order {
		merged = append(merged, m.batches[sourceID]...)
	}
	return merged
}

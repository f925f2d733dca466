// Package stepstate implements the per-step map-reduce execution state
// machine of SPEC_FULL.md §4.4: a step owns a map of unit tasks, each with
// its own append-only attempt history, and knows how to initialize its
// output, enumerate map items, stage inputs, submit, poll, retry, and
// finalize.
package stepstate

import (
	"github.com/jhphan/geneflow/internal/status"
)

// RunAttempt is one append-only attempt record for a map item: the
// backend's opaque job ID, an opportunistically-captured secondary
// identifier (an HPC queue ID discoverable only after queueing), the
// archive URI holding that attempt's output, and its last-polled status.
type RunAttempt struct {
	JobID      string
	QueueRef   string
	ArchiveURI string
	Status     status.MapItemStatus
}

// MapItem is one unit task driven by a step's map enumeration: a source
// filename, its resolved template, and the ordered history of attempts
// made to process it.
type MapItem struct {
	Filename string
	Template map[string]any
	Attempt  int
	Run      []RunAttempt
}

// Status returns the map item's current status: the status of its
// current attempt, per SPEC_FULL.md §3's invariant. A map item with no
// attempts yet is PENDING.
func (m *MapItem) Status() status.MapItemStatus {
	if len(m.Run) == 0 {
		return status.MapItemPending
	}
	return m.Run[m.Attempt].Status
}

// CurrentAttempt returns a pointer to the map item's current attempt
// record, or nil if none exists yet.
func (m *MapItem) CurrentAttempt() *RunAttempt {
	if len(m.Run) == 0 {
		return nil
	}
	return &m.Run[m.Attempt]
}

// NewAttempt appends a fresh, empty attempt record and advances Attempt
// to it, maintaining the invariant attempt == len(run)-1.
func (m *MapItem) NewAttempt() *RunAttempt {
	m.Run = append(m.Run, RunAttempt{Status: status.MapItemPending})
	m.Attempt = len(m.Run) - 1
	return &m.Run[m.Attempt]
}

// AggregateStatus computes a step's aggregate status over its map items.
func AggregateStatus(items []*MapItem) status.StepStatus {
	statuses := make([]status.MapItemStatus, len(items))
	for i, item := range items {
		statuses[i] = item.Status()
	}
	return status.Aggregate(statuses)
}

package stepstate

import (
	"context"

	"github.com/jhphan/geneflow/internal/status"
)

// Backend is the polymorphic part of the step execution contract: the
// operations that differ per execution context (local shell, gridengine,
// slurm, remote HPC gateway). Executor supplies everything else —
// initialization, data-URI management, map enumeration, staging, retry
// bookkeeping, and cleanup — identically across every context.
type Backend interface {
	// Context identifies which execution context this Backend implements
	// (must match the step's effective execution.context).
	Context() string

	// Submit starts one map item's task and returns its opaque job ID and
	// the URI of the archive location its output will land in.
	Submit(ctx context.Context, item *MapItem, resolvedTemplate map[string]any, taskName string) (jobID string, archiveURI string, err error)

	// Poll checks a map item's current attempt and returns its mapped
	// status. It may also return a newly-discovered queue reference; an
	// empty string means none was found this poll. Poll must not return
	// an error for backend states it cannot interpret — those map to
	// status.MapItemUnknown instead, per SPEC_FULL.md §4.4.
	Poll(ctx context.Context, item *MapItem) (st status.MapItemStatus, queueRef string, err error)

	// Cancel makes a best-effort attempt to cancel a live map item's
	// current attempt on the backend.
	Cancel(ctx context.Context, item *MapItem) error
}

package stepstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jhphan/geneflow/internal/status"
)

func TestMapRemoteStatus(t *testing.T) {
	cases := map[string]status.MapItemStatus{
		"FINISHED":           status.MapItemFinished,
		"ARCHIVING_FINISHED": status.MapItemFinished,
		"RUNNING":            status.MapItemRunning,
		"QUEUED":             status.MapItemQueued,
		"STAGED":             status.MapItemQueued,
		"FAILED":             status.MapItemFailed,
		"STOPPED":            status.MapItemStopped,
		"CANCELLED":          status.MapItemStopped,
		"SOMETHING_ELSE":     status.MapItemUnknown,
	}
	for in, want := range cases {
		require.Equal(t, want, mapRemoteStatus(in), in)
	}
}

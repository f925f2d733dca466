package stepstate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jhphan/geneflow/internal/definition"
	"github.com/jhphan/geneflow/internal/status"
)

func TestSelectMethod_PicksFirstMatchingPredicate(t *testing.T) {
	app := &definition.App{
		Name: "aligner",
		Execution: definition.Execution{
			Methods: []definition.Method{
				{Name: "paired", If: []string{"mate2"}},
				{Name: "single"},
			},
		},
	}

	m, err := selectMethod(app, map[string]any{"mate2": "r2.fastq"})
	require.NoError(t, err)
	require.Equal(t, "paired", m.Name)

	m, err = selectMethod(app, map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "single", m.Name)
}

func TestSelectMethod_FallsBackToAuto(t *testing.T) {
	app := &definition.App{
		Execution: definition.Execution{
			Methods: []definition.Method{
				{Name: "gpu", If: []string{"use_gpu"}},
				{Name: "auto"},
			},
		},
	}

	m, err := selectMethod(app, map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "auto", m.Name)
}

func TestSelectMethod_NoMethodsErrors(t *testing.T) {
	app := &definition.App{Name: "empty"}
	_, err := selectMethod(app, map[string]any{})
	require.Error(t, err)
}

func TestLocalShellBackend_SubmitRunsCommandAndReportsFinished(t *testing.T) {
	outDir := t.TempDir()
	marker := filepath.Join(outDir, "ran")

	app := &definition.App{
		Execution: definition.Execution{
			Methods: []definition.Method{
				{Name: "default", Commands: []definition.RunRecord{
					{Kind: definition.KindShell, Run: "touch " + marker},
				}},
			},
		},
	}

	backend := &LocalShellBackend{App: app}
	item := &MapItem{Filename: "sample1.fastq"}
	item.NewAttempt()

	jobID, archiveURI, err := backend.Submit(context.Background(), item, map[string]any{}, "task-1")
	require.NoError(t, err)
	require.Equal(t, "task-1", jobID)
	require.NotEmpty(t, archiveURI)

	_, statErr := os.Stat(marker)
	require.NoError(t, statErr)

	item.CurrentAttempt().JobID = jobID
	st, _, err := backend.Poll(context.Background(), item)
	require.NoError(t, err)
	require.Equal(t, status.MapItemFinished, st)
}

func TestRenderCommand_SubstitutesKnownTokensOnly(t *testing.T) {
	out := renderCommand("bwa mem {reference} {read1} > {output}", map[string]any{
		"reference": "ref.fa",
		"read1":     "r1.fastq",
	})
	require.Equal(t, "bwa mem ref.fa r1.fastq > {output}", out)
}

func TestRenderedScript_JoinsMultipleCommands(t *testing.T) {
	app := &definition.App{
		Execution: definition.Execution{
			Methods: []definition.Method{
				{Name: "default", Commands: []definition.RunRecord{
					{Kind: definition.KindShell, Run: "mkdir -p {output}"},
					{Kind: definition.KindShell, Run: "bwa mem {reference} > {output}/aln.sam"},
				}},
			},
		},
	}
	script, err := renderedScript(app, map[string]any{"reference": "ref.fa", "output": "out"})
	require.NoError(t, err)
	require.Equal(t, "mkdir -p out\nbwa mem ref.fa > out/aln.sam", script)
}

func TestLocalShellBackend_SubmitFailingCommandReportsFailed(t *testing.T) {
	app := &definition.App{
		Execution: definition.Execution{
			Methods: []definition.Method{
				{Name: "default", Commands: []definition.RunRecord{
					{Kind: definition.KindShell, Run: "exit 1"},
				}},
			},
		},
	}

	backend := &LocalShellBackend{App: app}
	item := &MapItem{Filename: "sample1.fastq"}
	item.NewAttempt()

	jobID, _, err := backend.Submit(context.Background(), item, map[string]any{}, "task-2")
	require.NoError(t, err)

	item.CurrentAttempt().JobID = jobID
	st, _, err := backend.Poll(context.Background(), item)
	require.NoError(t, err)
	require.Equal(t, status.MapItemFailed, st)
}

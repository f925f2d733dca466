package stepstate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jhphan/geneflow/internal/backoff"
	"github.com/jhphan/geneflow/internal/datamgr"
	"github.com/jhphan/geneflow/internal/definition"
	"github.com/jhphan/geneflow/internal/status"
)

// fakeBackend simulates a local execution backend: Submit "runs" a map
// item synchronously by writing a fixed result.txt into an archive
// directory, and Poll always reports FINISHED.
type fakeBackend struct {
	archiveDir string
	fail       map[string]bool
}

func (b *fakeBackend) Context() string { return "local" }

func (b *fakeBackend) Submit(_ context.Context, item *MapItem, _ map[string]any, taskName string) (string, string, error) {
	if b.fail[item.Filename] {
		return "", "", fmt.Errorf("simulated submission failure for %s", item.Filename)
	}
	archive := filepath.Join(b.archiveDir, taskName)
	if err := os.MkdirAll(archive, 0o755); err != nil {
		return "", "", err
	}
	_ = os.WriteFile(filepath.Join(archive, "result.txt"), []byte("ok"), 0o644)
	return "job-" + taskName, "local://" + archive, nil
}

func (b *fakeBackend) Poll(_ context.Context, _ *MapItem) (status.MapItemStatus, string, error) {
	return status.MapItemFinished, "", nil
}

func (b *fakeBackend) Cancel(_ context.Context, _ *MapItem) error { return nil }

func newTestExecutor(t *testing.T) (*Executor, string, string) {
	t.Helper()
	workDir := t.TempDir()
	archiveDir := t.TempDir()

	mapDir := filepath.Join(workDir, "map")
	require.NoError(t, os.MkdirAll(mapDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mapDir, "sample1.fastq"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(mapDir, "sample2.fastq"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(mapDir, "notes.txt"), []byte("c"), 0o644))

	outputURI, err := datamgr.Parse("local://" + filepath.Join(workDir, "output"))
	require.NoError(t, err)
	mapURI, err := datamgr.Parse("local://" + mapDir)
	require.NoError(t, err)

	app := &definition.App{Name: "hello_app"}
	step := &definition.Step{
		Name:    "hello",
		AppName: "hello_app",
		Map:     definition.MapSpec{Glob: "*.fastq"},
		Template: map[string]any{
			"output": "result.txt",
		},
		Execution: definition.StepExecution{Context: "local", Method: "auto"},
	}
	job := &definition.Job{Name: "job1"}

	exec := &Executor{
		StepName:   "hello",
		Step:       step,
		App:        app,
		Job:        job,
		Backend:    &fakeBackend{archiveDir: archiveDir, fail: map[string]bool{}},
		DataMgr:    datamgr.NewManager(),
		SourceCtx:  datamgr.LocalCtx{},
		ArchiveCtx: datamgr.LocalCtx{},
		RetryLimit: 3,
		OutputURI:  outputURI,
		MapURI:     mapURI,
	}
	return exec, workDir, archiveDir
}

func TestExecutor_Initialize_ContextMismatch(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	exec.Backend = &fakeBackend{archiveDir: t.TempDir()}
	exec.Step.Execution.Context = "gridengine"
	err := exec.Initialize(context.Background())
	require.Error(t, err)
}

func TestExecutor_GetMapURIList_RegexDefaultIsInclusionFilter(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	exec.Step.Map.Regex = "sample1"

	names, err := exec.GetMapURIList(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"sample1.fastq"}, names)
}

func TestExecutor_GetMapURIList_RegexMatchingNothingIsEmpty(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	exec.Step.Map.Regex = "no-such-file"

	names, err := exec.GetMapURIList(context.Background())
	require.NoError(t, err)
	require.Empty(t, names)
	require.Empty(t, exec.Items)
}

func TestExecutor_GetMapURIList_RegexInclusiveTrueIsExclusionFilter(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	exec.Step.Map.Regex = "sample1"
	exec.Step.Map.Inclusive = true

	names, err := exec.GetMapURIList(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"sample2.fastq"}, names)
}

func TestExecutor_FullLifecycle(t *testing.T) {
	exec, workDir, _ := newTestExecutor(t)
	ctx := context.Background()

	require.NoError(t, exec.Initialize(ctx))
	require.NoError(t, exec.InitDataURI(ctx))

	names, err := exec.GetMapURIList(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"sample1.fastq", "sample2.fastq"}, names)
	require.Len(t, exec.Items, 2)

	require.NoError(t, exec.StageInputs(ctx))
	require.NoError(t, exec.Run(ctx))

	for _, item := range exec.Items {
		require.Equal(t, status.MapItemPending, item.Status())
	}

	require.NoError(t, exec.CheckRunningJobs(ctx))
	for _, item := range exec.Items {
		require.Equal(t, status.MapItemFinished, item.Status())
	}
	require.Equal(t, status.StepFinished, AggregateStatus(exec.Items))

	require.NoError(t, exec.CleanUp(ctx))

	for _, item := range exec.Items {
		resultFile := filepath.Join(workDir, "output", item.Filename, "result.txt")
		got, err := os.ReadFile(resultFile)
		require.NoError(t, err)
		require.Equal(t, "ok", string(got))
	}

	detail := exec.SerializeDetail()
	require.Equal(t, "hello", detail["step"])
	require.Equal(t, "FINISHED", detail["status"])
}

func TestExecutor_RunSubmissionFailureAborts(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	ctx := context.Background()

	require.NoError(t, exec.Initialize(ctx))
	require.NoError(t, exec.InitDataURI(ctx))
	_, err := exec.GetMapURIList(ctx)
	require.NoError(t, err)

	exec.RetryLimit = 1
	backend := exec.Backend.(*fakeBackend)
	backend.fail["sample1.fastq"] = true

	err = exec.Run(ctx)
	require.Error(t, err, "a submission failure must abort the step")
}

func TestExecutor_RetryFailedReSubmitsWithinLimit(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	ctx := context.Background()

	require.NoError(t, exec.Initialize(ctx))
	require.NoError(t, exec.InitDataURI(ctx))
	_, err := exec.GetMapURIList(ctx)
	require.NoError(t, err)
	require.NoError(t, exec.Run(ctx))

	item := exec.Items[0]
	item.CurrentAttempt().Status = status.MapItemFailed

	exec.RetryLimit = 3
	require.NoError(t, exec.RetryFailed(ctx))
	require.Equal(t, 1, item.Attempt)
	require.Equal(t, status.MapItemPending, item.Status())
}

func TestExecutor_RetryFailedExceedsLimit(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	ctx := context.Background()

	require.NoError(t, exec.Initialize(ctx))
	require.NoError(t, exec.InitDataURI(ctx))
	_, err := exec.GetMapURIList(ctx)
	require.NoError(t, err)
	require.NoError(t, exec.Run(ctx))

	item := exec.Items[0]
	exec.RetryLimit = 1

	// With RetryLimit == 1, the first failure still gets one retry
	// (attempt 0 -> 1); only a second failure at attempt 1 exhausts it.
	item.CurrentAttempt().Status = status.MapItemFailed
	require.NoError(t, exec.RetryFailed(ctx))
	require.Equal(t, 1, item.Attempt)

	item.CurrentAttempt().Status = status.MapItemFailed
	err = exec.RetryFailed(ctx)
	require.Error(t, err)
}

func TestExecutor_RetryFailedRetryLimitOneFinishesOnFirstRetry(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	ctx := context.Background()

	require.NoError(t, exec.Initialize(ctx))
	require.NoError(t, exec.InitDataURI(ctx))
	_, err := exec.GetMapURIList(ctx)
	require.NoError(t, err)
	require.NoError(t, exec.Run(ctx))

	item := exec.Items[0]
	item.CurrentAttempt().Status = status.MapItemFailed
	exec.RetryLimit = 1

	require.NoError(t, exec.RetryFailed(ctx))
	require.Equal(t, 1, item.Attempt)

	require.NoError(t, exec.CheckRunningJobs(ctx))
	require.Equal(t, status.StepFinished, AggregateStatus(exec.Items))
}

func TestExecutor_RetryFailedWaitsOutRetryPolicy(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	ctx := context.Background()

	require.NoError(t, exec.Initialize(ctx))
	require.NoError(t, exec.InitDataURI(ctx))
	_, err := exec.GetMapURIList(ctx)
	require.NoError(t, err)
	require.NoError(t, exec.Run(ctx))

	item := exec.Items[0]
	item.CurrentAttempt().Status = status.MapItemFailed

	exec.RetryLimit = 3
	exec.RetryPolicy = backoff.NewConstantBackoffPolicy(5 * time.Millisecond)

	start := time.Now()
	require.NoError(t, exec.RetryFailed(ctx))
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
	require.Equal(t, status.MapItemPending, item.Status())
}

func TestExecutor_RetryFailedCancelledDuringBackoffWait(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, exec.Initialize(ctx))
	require.NoError(t, exec.InitDataURI(ctx))
	_, err := exec.GetMapURIList(ctx)
	require.NoError(t, err)
	require.NoError(t, exec.Run(ctx))

	item := exec.Items[0]
	item.CurrentAttempt().Status = status.MapItemFailed

	exec.RetryLimit = 3
	exec.RetryPolicy = backoff.NewConstantBackoffPolicy(time.Hour)
	cancel()

	err = exec.RetryFailed(ctx)
	require.Error(t, err)
}

func TestExecutor_Cancel(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	ctx := context.Background()

	require.NoError(t, exec.Initialize(ctx))
	require.NoError(t, exec.InitDataURI(ctx))
	_, err := exec.GetMapURIList(ctx)
	require.NoError(t, err)
	require.NoError(t, exec.Run(ctx))

	require.NoError(t, exec.Cancel(ctx))
	for _, item := range exec.Items {
		require.Equal(t, status.MapItemStopped, item.Status())
	}
}

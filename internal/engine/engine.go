package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhphan/geneflow/internal/backoff"
	"github.com/jhphan/geneflow/internal/datamgr"
	"github.com/jhphan/geneflow/internal/definition"
	"github.com/jhphan/geneflow/internal/errs"
	"github.com/jhphan/geneflow/internal/graph"
	"github.com/jhphan/geneflow/internal/logger"
	"github.com/jhphan/geneflow/internal/status"
	"github.com/jhphan/geneflow/internal/stepstate"
)

// Config configures one Engine instance. RetryLimit and Clean are copied
// into every step's Executor; per-step work directories come from the
// job's work_uri (the step's own entry, else "default").
type Config struct {
	Registry     Registry
	RetryLimit   int
	Clean        bool
	PollInterval time.Duration

	// RetryPolicy paces resubmission of a failed map item. Defaults to
	// exponential backoff starting at one second if unset.
	RetryPolicy backoff.RetryPolicy
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return 5 * time.Second
	}
	return c.PollInterval
}

func (c Config) retryPolicy() backoff.RetryPolicy {
	if c.RetryPolicy == nil {
		return backoff.NewExponentialBackoffPolicy(time.Second)
	}
	return c.RetryPolicy
}

// Engine drives a numbered workflow DAG to completion per SPEC_FULL.md
// §4.5: a single owning goroutine advances the ready/running/done/failed
// sets; one supervisory goroutine per running step owns that step's
// Executor and reports back over a shared results channel, so no two
// goroutines ever mutate the same step's map structure.
type Engine struct {
	cfg Config
}

// New builds an Engine from cfg, mirroring the teacher's
// scheduler.New(cfg) constructor shape.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// stepResult is what a step's supervisory goroutine reports back once its
// Executor reaches a terminal aggregate status.
type stepResult struct {
	name      string
	status    status.StepStatus
	outputURI datamgr.URI
	err       error
}

// Run drives workflow to completion for job, resolving each step's app via
// store, and publishing every status transition to sink. It returns the
// first fatal error encountered, or nil if every step finished
// successfully and publish succeeded.
func (e *Engine) Run(ctx context.Context, store *definition.Store, workflow *definition.Workflow, job *definition.Job, sink status.Sink) error {
	numbered, err := graph.Number(workflow)
	if err != nil {
		return err
	}

	sourceCtx, err := e.cfg.Registry.Ctx(datamgr.SchemeLocal)
	if err != nil {
		return err
	}

	jobOutputURI, err := datamgr.Parse(job.OutputURI)
	if err != nil {
		return errs.Data(fmt.Sprintf("invalid job output_uri: %v", err), job.Name)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var cancelled atomic.Bool

	results := make(chan stepResult, len(numbered.Steps))
	var wg sync.WaitGroup

	done := map[string]bool{}
	running := map[string]bool{}
	failed := map[string]bool{}
	outputs := map[string]datamgr.URI{}

	total := len(numbered.Steps)
	remaining := total
	var firstErr error

	for remaining > 0 {
		if cancelled.Load() {
			// Cancellation halts new submissions: every step that has not
			// already started is counted failed without running so the loop
			// can still drain, rather than waiting on a goroutine that will
			// never be launched.
			for name := range numbered.Steps {
				if done[name] || running[name] || failed[name] {
					continue
				}
				failed[name] = true
				remaining--
			}
			if remaining == 0 {
				break
			}
		} else {
			for name, step := range numbered.Steps {
				if done[name] || running[name] || failed[name] {
					continue
				}
				if !graph.Ready(numbered, name, done) {
					continue
				}

				app, found := store.App(appName(step))
				if !found {
					return errs.Validation(fmt.Sprintf("no app registered named %q", appName(step)), name)
				}

				backend, backendErr := e.cfg.Registry.Backend(
					job.Execution.EffectiveContext(name),
					app,
					job.Execution.EffectiveParameters(name),
				)
				if backendErr != nil {
					return errs.Submit(backendErr.Error(), name)
				}

				workURI, workErr := e.workURI(job, name)
				if workErr != nil {
					return workErr
				}

				dependURIs := map[string]datamgr.URI{}
				for _, dep := range step.Depend {
					dependURIs[dep] = outputs[dep]
				}

				exec := &stepstate.Executor{
					StepName:    name,
					Step:        step,
					App:         app,
					Job:         job,
					Backend:     backend,
					DataMgr:     datamgr.NewManager(),
					SourceCtx:   sourceCtx,
					ArchiveCtx:  sourceCtx,
					Sink:        sink,
					RetryLimit:  e.cfg.RetryLimit,
					RetryPolicy: e.cfg.retryPolicy(),
					Clean:       e.cfg.Clean,
					OutputURI:   workURI.Join("output"),
					MapURI:      workURI.Join("map"),
					DependURIs:  dependURIs,
				}

				running[name] = true
				wg.Add(1)
				go e.runStep(ctx, exec, results, &wg)
			}
		}

		if remaining == 0 {
			break
		}

		res := <-results
		delete(running, res.name)
		if res.err != nil {
			failed[res.name] = true
			logger.Error(ctx, "step failed", "step", res.name, "error", res.err)
			if firstErr == nil {
				firstErr = res.err
			}
			cancelled.Store(true)
			cancel()
		} else {
			done[res.name] = true
			outputs[res.name] = res.outputURI
		}
		remaining--
	}
	wg.Wait()
	close(results)

	if firstErr != nil {
		return firstErr
	}

	return e.publish(ctx, workflow, job, outputs, jobOutputURI, sourceCtx)
}

// runStep owns exec for its whole lifetime: it runs Initialize,
// InitDataURI, GetMapURIList, StageInputs and Run in that order, polls
// CheckRunningJobs/RetryFailed until the step's aggregate status is
// FINISHED, then runs CleanUp. Stage and SerializeDetail are not called.
func (e *Engine) runStep(ctx context.Context, exec *stepstate.Executor, results chan<- stepResult, wg *sync.WaitGroup) {
	defer wg.Done()

	name := exec.StepName
	if err := exec.Initialize(ctx); err != nil {
		results <- stepResult{name: name, err: err}
		return
	}
	if err := exec.InitDataURI(ctx); err != nil {
		results <- stepResult{name: name, err: err}
		return
	}
	if _, err := exec.GetMapURIList(ctx); err != nil {
		results <- stepResult{name: name, err: err}
		return
	}
	if err := exec.StageInputs(ctx); err != nil {
		results <- stepResult{name: name, err: err}
		return
	}
	if err := exec.Run(ctx); err != nil {
		results <- stepResult{name: name, err: err}
		return
	}

	for {
		if err := exec.CheckRunningJobs(ctx); err != nil {
			results <- stepResult{name: name, err: err}
			return
		}

		agg := stepstate.AggregateStatus(exec.Items)
		if agg == status.StepRunning || agg == status.StepPending {
			select {
			case <-ctx.Done():
				_ = exec.Cancel(context.Background())
				results <- stepResult{name: name, err: errs.Cancelled(fmt.Sprintf("step %q cancelled", name))}
				return
			case <-time.After(e.cfg.pollInterval()):
				continue
			}
		}

		if agg == status.StepFailed || agg == status.StepStopped {
			if err := exec.RetryFailed(ctx); err != nil {
				results <- stepResult{name: name, err: err}
				return
			}
			continue
		}

		break
	}

	if err := exec.CleanUp(ctx); err != nil {
		results <- stepResult{name: name, err: err}
		return
	}

	results <- stepResult{name: name, status: stepstate.AggregateStatus(exec.Items), outputURI: exec.OutputURI}
}

func (e *Engine) workURI(job *definition.Job, stepName string) (datamgr.URI, error) {
	raw, ok := job.WorkURI[stepName]
	if !ok {
		raw, ok = job.WorkURI["default"]
	}
	if !ok {
		return datamgr.URI{}, errs.Data(fmt.Sprintf("no work_uri configured for step %q or \"default\"", stepName), stepName)
	}
	uri, err := datamgr.Parse(raw)
	if err != nil {
		return datamgr.URI{}, errs.Data(fmt.Sprintf("invalid work_uri: %v", err), stepName)
	}
	return uri.Join(stepName), nil
}

// publish copies every workflow.publish-named step's output into
// job.output_uri, per SPEC_FULL.md §4.5: content-addressed by the
// SHA-256 hex of the step's output URI unless job.no_output_hash is set.
func (e *Engine) publish(ctx context.Context, workflow *definition.Workflow, job *definition.Job, outputs map[string]datamgr.URI, jobOutputURI datamgr.URI, sourceCtx datamgr.Ctx) error {
	mgr := datamgr.NewManager()
	for _, stepName := range workflow.Publish {
		src, ok := outputs[stepName]
		if !ok {
			return errs.Validation(fmt.Sprintf("workflow publishes unknown step %q", stepName), workflow.Name)
		}

		dir := stepName
		if !job.NoOutputHash {
			sum := sha256.Sum256([]byte(src.String()))
			dir = hex.EncodeToString(sum[:])
		}
		dest := jobOutputURI.Join(dir)

		if err := mgr.CopyTree(ctx, src, sourceCtx, dest, sourceCtx); err != nil {
			return errs.Wrap(errs.KindData, "cannot publish step output", stepName, err)
		}
	}
	return nil
}

// appName resolves the app identifier a step references, whether declared
// via app_name (a directly store-registered app) or app (an alias into
// the workflow's apps map) — both are resolved against the same store by
// name, since git-based app fetching for workflow.apps aliases is outside
// this module's scope.
func appName(step *definition.Step) string {
	if step.AppName != "" {
		return step.AppName
	}
	return step.App
}

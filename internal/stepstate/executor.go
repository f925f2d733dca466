package stepstate

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jhphan/geneflow/internal/backoff"
	"github.com/jhphan/geneflow/internal/datamgr"
	"github.com/jhphan/geneflow/internal/definition"
	"github.com/jhphan/geneflow/internal/errs"
	"github.com/jhphan/geneflow/internal/logger"
	"github.com/jhphan/geneflow/internal/status"
	"github.com/jhphan/geneflow/internal/template"
)

// Executor implements the ten operations of SPEC_FULL.md §4.4 shared by
// every execution context: only Backend.Submit/Poll/Cancel differ between
// local, gridengine, slurm, and remote steps. The scheduler invokes the
// operations in the fixed order documented on each method.
type Executor struct {
	StepName string
	Step     *definition.Step
	App      *definition.App
	Job      *definition.Job

	Backend Backend
	DataMgr datamgr.Manager

	// SourceCtx addresses the step's own work/output filesystem.
	// ArchiveCtx addresses the backend's archive location, which may be a
	// different scheme (e.g. a remote gateway's archive store for a
	// gridengine step staged over SSH).
	SourceCtx  datamgr.Ctx
	ArchiveCtx datamgr.Ctx

	Sink       status.Sink
	RetryLimit int
	Clean      bool

	// RetryPolicy paces resubmission after a map item fails — if nil,
	// RetryFailed resubmits immediately with no delay.
	RetryPolicy backoff.RetryPolicy

	// OutputURI is this step's output directory under the source
	// context. MapURI is where get_map_uri_list enumerates map items
	// from. DependURIs maps a predecessor step's name to its output URI,
	// already resolved to the source context by the engine.
	OutputURI  datamgr.URI
	MapURI     datamgr.URI
	DependURIs map[string]datamgr.URI

	Items []*MapItem
}

// Initialize validates that this Executor's Backend matches the step's
// effective execution context and that required resources are present.
func (e *Executor) Initialize(_ context.Context) error {
	if e.Step.Execution.Context != "" && e.Step.Execution.Context != e.Backend.Context() {
		return errs.Submit(fmt.Sprintf("step context %q does not match backend %q", e.Step.Execution.Context, e.Backend.Context()), e.StepName)
	}
	if e.App == nil {
		return errs.Validation("step has no resolved app", e.StepName)
	}
	if e.DataMgr == nil || e.SourceCtx == nil {
		return errs.Data("data manager or source context not configured", e.StepName)
	}
	return nil
}

// InitDataURI creates the step's output directory. If it already exists
// and Clean is set, it is deleted first; a failed delete is logged as a
// warning, not fatal. A failed create is fatal.
func (e *Executor) InitDataURI(ctx context.Context) error {
	exists, err := e.DataMgr.Exists(ctx, e.OutputURI, e.SourceCtx)
	if err != nil {
		return errs.Wrap(errs.KindData, "cannot check output uri", e.StepName, err)
	}
	if exists && e.Clean {
		if err := e.DataMgr.Delete(ctx, e.OutputURI, e.SourceCtx); err != nil {
			logger.Warn(ctx, "failed to clean existing output directory", "step", e.StepName, "error", err)
		}
	}
	if err := e.DataMgr.Mkdir(ctx, e.OutputURI, true, e.SourceCtx); err != nil {
		return errs.Wrap(errs.KindData, "cannot create output uri", e.StepName, err)
	}
	return nil
}

// GetMapURIList lists MapURI, filters by the step's map.glob and
// map.regex, and populates Items with one MapItem per surviving filename.
func (e *Executor) GetMapURIList(ctx context.Context) ([]string, error) {
	names, err := e.DataMgr.List(ctx, e.MapURI, e.SourceCtx)
	if err != nil {
		return nil, errs.Wrap(errs.KindData, "cannot list map uri", e.StepName, err)
	}

	glob := e.Step.Map.Glob
	if glob == "" {
		glob = "*"
	}

	var re *regexp.Regexp
	if e.Step.Map.Regex != "" {
		re, err = regexp.Compile(e.Step.Map.Regex)
		if err != nil {
			return nil, errs.Validation(fmt.Sprintf("invalid map regex: %v", err), e.StepName)
		}
	}

	var filtered []string
	for _, name := range names {
		matched, err := doublestar.Match(glob, name)
		if err != nil {
			return nil, errs.Validation(fmt.Sprintf("invalid map glob: %v", err), e.StepName)
		}
		if !matched {
			continue
		}
		if re != nil {
			isMatch := re.MatchString(name)
			// default (Inclusive==false): regex is an inclusion filter,
			// only matching names survive. Inclusive==true reverses it
			// to an exclusion filter, dropping matching names instead.
			if !e.Step.Map.Inclusive && !isMatch {
				continue
			}
			if e.Step.Map.Inclusive && isMatch {
				continue
			}
		}
		filtered = append(filtered, name)
	}
	sort.Strings(filtered)

	e.Items = make([]*MapItem, len(filtered))
	for i, name := range filtered {
		e.Items[i] = &MapItem{Filename: name}
	}
	return filtered, nil
}

// StageInputs copies every dependency step's output into MapURI so this
// step's map enumeration finds them alongside any externally-supplied
// inputs already present there.
func (e *Executor) StageInputs(ctx context.Context) error {
	if len(e.DependURIs) == 0 {
		return nil
	}
	if err := e.DataMgr.Mkdir(ctx, e.MapURI, true, e.SourceCtx); err != nil {
		return errs.Wrap(errs.KindData, "cannot create stage directory", e.StepName, err)
	}
	for depStep, uri := range e.DependURIs {
		names, err := e.DataMgr.List(ctx, uri, e.SourceCtx)
		if err != nil {
			return errs.Wrap(errs.KindData, fmt.Sprintf("cannot list dependency %q output", depStep), e.StepName, err)
		}
		for _, name := range names {
			if err := e.DataMgr.CopyTree(ctx, uri.Join(name), e.SourceCtx, e.MapURI.Join(name), e.SourceCtx); err != nil {
				return errs.Wrap(errs.KindData, fmt.Sprintf("cannot stage input from %q", depStep), name, err)
			}
		}
	}
	return nil
}

// Run resolves each map item's template, submits its task, and records
// the attempt. A single submission failure aborts the step.
func (e *Executor) Run(ctx context.Context) error {
	for _, item := range e.Items {
		resolved, err := template.Resolve(e.App, e.Step, item.Template, e.Step.Execution.Method)
		if err != nil {
			return errs.Wrap(errs.KindSubmit, "cannot resolve template", item.Filename, err)
		}
		item.Template = resolved

		attempt := item.NewAttempt()
		taskName := template.TaskName(item.Attempt, e.StepName, item.Filename)

		jobID, archiveURI, err := e.Backend.Submit(ctx, item, resolved, taskName)
		if err != nil {
			return errs.Wrap(errs.KindSubmit, "submission failed", item.Filename, err)
		}
		attempt.JobID = jobID
		attempt.ArchiveURI = archiveURI
		attempt.Status = status.MapItemPending
	}

	e.publish(status.StepRunning, "")
	return nil
}

// CheckRunningJobs polls every non-terminal map item's current attempt.
// An unrecoverable poll error maps the item to UNKNOWN rather than
// failing the step.
func (e *Executor) CheckRunningJobs(ctx context.Context) error {
	for _, item := range e.Items {
		attempt := item.CurrentAttempt()
		if attempt == nil || attempt.Status.Terminal() {
			continue
		}

		st, queueRef, err := e.Backend.Poll(ctx, item)
		if err != nil {
			logger.Warn(ctx, "poll failed, marking unknown", "step", e.StepName, "item", item.Filename, "error", err)
			st = status.MapItemUnknown
		}
		attempt.Status = st
		if queueRef != "" && attempt.QueueRef == "" {
			attempt.QueueRef = queueRef
		}
	}
	return nil
}

// RetryFailed re-submits every map item whose current attempt is FAILED
// or STOPPED and has not exceeded RetryLimit. Exceeding the limit is a
// fatal error naming the offending filename and its last job ID.
func (e *Executor) RetryFailed(ctx context.Context) error {
	for _, item := range e.Items {
		attempt := item.CurrentAttempt()
		if attempt == nil {
			continue
		}
		if attempt.Status != status.MapItemFailed && attempt.Status != status.MapItemStopped {
			continue
		}
		if item.Attempt >= e.RetryLimit {
			return errs.RetryExhausted(fmt.Sprintf("retries exhausted for %q (last job id %s)", item.Filename, attempt.JobID), item.Filename)
		}

		if e.RetryPolicy != nil {
			interval, _ := e.RetryPolicy.ComputeNextInterval(item.Attempt, 0, nil)
			select {
			case <-ctx.Done():
				return errs.Cancelled(fmt.Sprintf("retry of %q cancelled", item.Filename))
			case <-time.After(interval):
			}
		}

		resolved, err := template.Resolve(e.App, e.Step, item.Template, e.Step.Execution.Method)
		if err != nil {
			return errs.Wrap(errs.KindSubmit, "cannot resolve template for retry", item.Filename, err)
		}

		next := item.NewAttempt()
		taskName := template.TaskName(item.Attempt, e.StepName, item.Filename)

		jobID, archiveURI, err := e.Backend.Submit(ctx, item, resolved, taskName)
		if err != nil {
			return errs.Wrap(errs.KindSubmit, "retry submission failed", item.Filename, err)
		}
		next.JobID = jobID
		next.ArchiveURI = archiveURI
		next.Status = status.MapItemPending
	}
	return nil
}

// CleanUp copies each finished map item's declared output artifact from
// its attempt's archive location into the step's output directory, and
// mirrors an auxiliary _log subdirectory if the archive has one.
func (e *Executor) CleanUp(ctx context.Context) error {
	outputRel, _ := e.Step.Template["output"].(string)

	for _, item := range e.Items {
		attempt := item.CurrentAttempt()
		if attempt == nil || attempt.Status != status.MapItemFinished {
			continue
		}

		archiveURI, err := datamgr.Parse(attempt.ArchiveURI)
		if err != nil {
			return errs.Wrap(errs.KindData, "invalid archive uri", item.Filename, err)
		}

		rel := outputRel
		if rel == "" {
			rel = item.Filename
		}

		destDir := e.OutputURI.Join(item.Filename)
		if err := e.DataMgr.Mkdir(ctx, destDir, true, e.SourceCtx); err != nil {
			return errs.Wrap(errs.KindData, "cannot create item output directory", item.Filename, err)
		}

		srcFile := archiveURI.Join(rel)
		destFile := destDir.Join(path.Base(rel))
		if err := e.DataMgr.Copy(ctx, srcFile, e.ArchiveCtx, destFile, e.SourceCtx); err != nil {
			return errs.Wrap(errs.KindData, "cannot copy step output", item.Filename, err)
		}

		logURI := archiveURI.Join("_log")
		if ok, _ := e.DataMgr.Exists(ctx, logURI, e.ArchiveCtx); ok {
			destLog := destDir.Join("_log")
			if err := e.DataMgr.Mkdir(ctx, destLog, true, e.SourceCtx); err == nil {
				names, err := e.DataMgr.List(ctx, logURI, e.ArchiveCtx)
				if err == nil {
					for _, name := range names {
						_ = e.DataMgr.Copy(ctx, logURI.Join(name), e.ArchiveCtx, destLog.Join(name), e.SourceCtx)
					}
				}
			}
		}
	}

	e.publish(AggregateStatus(e.Items), "")
	return nil
}

// Stage copies this step's output directory into dest under destCtx, for
// use by the scheduler when wiring this step's output into a successor's
// input.
func (e *Executor) Stage(ctx context.Context, dest datamgr.URI, destCtx datamgr.Ctx) error {
	if err := e.DataMgr.CopyTree(ctx, e.OutputURI, e.SourceCtx, dest, destCtx); err != nil {
		return errs.Wrap(errs.KindData, "cannot stage output", e.StepName, err)
	}
	return nil
}

// SerializeDetail returns a status-reporting snapshot of the step's map
// structure: every item's filename, attempt count, status, and full run
// history.
func (e *Executor) SerializeDetail() map[string]any {
	items := make([]map[string]any, len(e.Items))
	for i, item := range e.Items {
		runs := make([]map[string]any, len(item.Run))
		for j, r := range item.Run {
			runs[j] = map[string]any{
				"job_id":      r.JobID,
				"queue_ref":   r.QueueRef,
				"archive_uri": r.ArchiveURI,
				"status":      r.Status.String(),
			}
		}
		items[i] = map[string]any{
			"filename": item.Filename,
			"attempt":  item.Attempt,
			"status":   item.Status().String(),
			"run":      runs,
		}
	}
	return map[string]any{
		"step":   e.StepName,
		"status": AggregateStatus(e.Items).String(),
		"items":  items,
	}
}

// Cancel makes a best-effort attempt to cancel every non-terminal map
// item's current attempt.
func (e *Executor) Cancel(ctx context.Context) error {
	var list errs.List
	for _, item := range e.Items {
		attempt := item.CurrentAttempt()
		if attempt == nil || attempt.Status.Terminal() {
			continue
		}
		if err := e.Backend.Cancel(ctx, item); err != nil {
			list.Add(err)
			continue
		}
		attempt.Status = status.MapItemStopped
	}
	e.publish(status.StepStopped, "")
	return list.Err()
}

func (e *Executor) publish(st status.StepStatus, msg string) {
	if e.Sink == nil || e.Job == nil {
		return
	}
	e.Sink.Publish(status.Event{JobID: e.Job.Name, StepName: e.StepName, Status: st, Message: msg})
}

package stepstate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/jhphan/geneflow/internal/definition"
	"github.com/jhphan/geneflow/internal/status"
)

// LocalShellBackend runs each map item's selected method synchronously as
// a local subprocess — docker/singularity methods are wrapped in the
// corresponding container-runtime invocation, shell methods run directly.
// Submit blocks until the command exits, so Poll always reports a
// terminal status on the first call.
type LocalShellBackend struct {
	App *definition.App

	results map[string]error
}

func (b *LocalShellBackend) Context() string { return "local" }

func (b *LocalShellBackend) Submit(ctx context.Context, item *MapItem, resolved map[string]any, taskName string) (string, string, error) {
	method, err := selectMethod(b.App, resolved)
	if err != nil {
		return "", "", err
	}

	var stderr bytes.Buffer
	for _, rec := range method.Commands {
		rendered := rec
		rendered.Run = renderCommand(rec.Run, resolved)
		cmd := buildCommand(ctx, rendered)
		cmd.Env = append(os.Environ(), templateEnv(resolved)...)
		cmd.Stderr = &stderr
		if runErr := cmd.Run(); runErr != nil {
			if b.results == nil {
				b.results = map[string]error{}
			}
			b.results[taskName] = fmt.Errorf("%w: %s", runErr, stderr.String())
			return taskName, "local://" + os.TempDir() + "/" + taskName, nil
		}
	}

	if b.results == nil {
		b.results = map[string]error{}
	}
	b.results[taskName] = nil
	return taskName, "local://" + os.TempDir() + "/" + taskName, nil
}

func (b *LocalShellBackend) Poll(_ context.Context, item *MapItem) (status.MapItemStatus, string, error) {
	attempt := item.CurrentAttempt()
	if attempt == nil {
		return status.MapItemUnknown, "", nil
	}
	err, ok := b.results[attempt.JobID]
	if !ok {
		return status.MapItemUnknown, "", nil
	}
	if err != nil {
		return status.MapItemFailed, "", nil
	}
	return status.MapItemFinished, "", nil
}

func (b *LocalShellBackend) Cancel(_ context.Context, _ *MapItem) error {
	return nil
}

// selectMethod picks the first method whose If predicates all evaluate
// true against resolved (a predicate is a resolved template key name: its
// presence with a non-empty value counts as true), falling back to a
// method literally named "auto" or "default", and finally the first
// declared method.
func selectMethod(app *definition.App, resolved map[string]any) (*definition.Method, error) {
	for i := range app.Execution.Methods {
		m := &app.Execution.Methods[i]
		if predicatesHold(m.If, resolved) {
			return m, nil
		}
	}
	for i := range app.Execution.Methods {
		m := &app.Execution.Methods[i]
		if m.Name == "auto" || m.Name == "default" {
			return m, nil
		}
	}
	if len(app.Execution.Methods) > 0 {
		return &app.Execution.Methods[0], nil
	}
	return nil, fmt.Errorf("app %q declares no execution methods", app.Name)
}

func predicatesHold(predicates []string, resolved map[string]any) bool {
	for _, key := range predicates {
		v, ok := resolved[key]
		if !ok || fmt.Sprintf("%v", v) == "" {
			return false
		}
	}
	return true
}

func buildCommand(ctx context.Context, rec definition.RunRecord) *exec.Cmd {
	switch rec.Kind {
	case definition.KindDocker:
		return exec.CommandContext(ctx, "docker", "run", "--rm", rec.Image, "sh", "-c", rec.Run)
	case definition.KindSingularity:
		return exec.CommandContext(ctx, "singularity", "exec", rec.Image, "sh", "-c", rec.Run)
	default:
		return exec.CommandContext(ctx, "sh", "-c", rec.Run)
	}
}

// renderedScript selects an app's matching method and joins its rendered
// commands into a single shell script body, one command per line — used
// by backends that submit a whole script rather than running commands
// one at a time in-process.
func renderedScript(app *definition.App, resolved map[string]any) (string, error) {
	method, err := selectMethod(app, resolved)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(method.Commands))
	for _, rec := range method.Commands {
		lines = append(lines, renderCommand(rec.Run, resolved))
	}
	return strings.Join(lines, "\n"), nil
}

// renderCommand substitutes every {name} token in run with the
// corresponding resolved template value, mirroring the "{}".format(...)
// string templating the original system uses to build its shell commands.
// A token with no matching key is left untouched.
func renderCommand(run string, resolved map[string]any) string {
	for k, v := range resolved {
		run = strings.ReplaceAll(run, "{"+k+"}", fmt.Sprintf("%v", v))
	}
	return run
}

func templateEnv(resolved map[string]any) []string {
	keys := make([]string, 0, len(resolved))
	for k := range resolved {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, fmt.Sprintf("GF_%s=%v", k, resolved[k]))
	}
	return env
}

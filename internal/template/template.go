// Package template resolves a map item's effective template — the merge
// of an app's declared defaults, a step's template overrides, and a map
// item's own per-item overrides — and builds the task name a step's
// submissions are identified by (SPEC_FULL.md §4.4).
package template

import (
	"fmt"
	"regexp"

	"dario.cat/mergo"

	"github.com/jhphan/geneflow/internal/definition"
)

const maxTaskNameLength = 64

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Slug normalizes s into a task-name-safe and filesystem-safe token by
// replacing every run of characters outside [a-zA-Z0-9_.-] with a single
// underscore.
func Slug(s string) string {
	return slugPattern.ReplaceAllString(s, "_")
}

// TaskName builds a submission's identifying name:
// {attempt}-{slug(stepName)}-{slug(filename)}, truncated to 64 characters
// with a ".." marker when it would otherwise overflow.
func TaskName(attempt int, stepName, filename string) string {
	name := fmt.Sprintf("%d-%s-%s", attempt, Slug(stepName), Slug(filename))
	if len(name) > maxTaskNameLength {
		name = name[:maxTaskNameLength-2] + ".."
	}
	return name
}

// Resolve computes a map item's effective template. Precedence, lowest to
// highest: the app's declared input/parameter defaults, the step's own
// template block, and the map item's per-item template overrides.
// exec_method is injected last, always equal to execMethod, so no layer
// can shadow it.
func Resolve(app *definition.App, step *definition.Step, itemOverrides map[string]any, execMethod string) (map[string]any, error) {
	resolved := map[string]any{}

	for name, in := range app.Inputs {
		if in.Default != "" {
			resolved[name] = in.Default
		}
	}
	for name, p := range app.Parameters {
		if p.Default != "" {
			resolved[name] = p.Default
		}
	}

	if err := mergo.Merge(&resolved, copyAny(step.Template), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge step template: %w", err)
	}
	if err := mergo.Merge(&resolved, copyAny(itemOverrides), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge map item template: %w", err)
	}

	resolved["exec_method"] = execMethod
	return resolved, nil
}

// copyAny returns a shallow copy so mergo's in-place src mutation (it can
// rewrite map value types during merge) never corrupts the caller's
// definition.
func copyAny(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

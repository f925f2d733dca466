// Package graph implements the DAG analyzer of SPEC_FULL.md §4.2: it
// assigns each workflow step a number and, within steps that share a
// number, a letter — and rejects workflows whose step dependencies form a
// cycle or reference an undefined step.
package graph

import (
	"fmt"
	"sort"

	"github.com/jhphan/geneflow/internal/definition"
	"github.com/jhphan/geneflow/internal/errs"
)

// Number returns a deep copy of wf with every step's Number and Letter
// populated. wf itself is left untouched so the same stored Workflow can
// be numbered independently by more than one job.
//
// Numbering follows SPEC_FULL.md §4.2 / the layered fixed-point algorithm
// of the original implementation: a step's number is one greater than the
// largest number among its dependencies (roots start at 1). Steps that
// land on the same number in the same pass are lettered a, b, c... in
// step-name order; a number shared by only one step gets no letter.
func Number(wf *definition.Workflow) (*definition.Workflow, error) {
	out := clone(wf)

	done := make(map[string]bool, len(out.Steps))
	for name := range out.Steps {
		done[name] = false
	}

	number := 1
	for {
		allDone := true
		var ready []string

		for name, step := range out.Steps {
			if done[name] {
				continue
			}
			allDone = false

			satisfied := true
			for _, dep := range step.Depend {
				if _, exists := out.Steps[dep]; !exists {
					return nil, errs.Graph(fmt.Sprintf("step depends on undefined step %q", dep), name)
				}
				if !done[dep] {
					satisfied = false
				}
			}
			if satisfied {
				ready = append(ready, name)
			}
		}

		if allDone {
			return out, nil
		}
		if len(ready) == 0 {
			return nil, errs.Graph("cycle detected in workflow dependencies", wf.Name)
		}

		sort.Strings(ready)
		letter := byte('a')
		for _, name := range ready {
			out.Steps[name].Number = number
			if len(ready) > 1 {
				out.Steps[name].Letter = string(letter)
				letter++
			}
			done[name] = true
		}

		number++
	}
}

// Roots returns the names of every step with no dependencies.
func Roots(wf *definition.Workflow) []string {
	var roots []string
	for name, step := range wf.Steps {
		if len(step.Depend) == 0 {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}

// Dependents returns the names of every step that directly depends on
// name, sorted.
func Dependents(wf *definition.Workflow, name string) []string {
	var out []string
	for stepName, step := range wf.Steps {
		for _, dep := range step.Depend {
			if dep == name {
				out = append(out, stepName)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Ready reports whether every dependency of step name has a status
// recorded as done in the done set.
func Ready(wf *definition.Workflow, name string, done map[string]bool) bool {
	step, ok := wf.Steps[name]
	if !ok {
		return false
	}
	for _, dep := range step.Depend {
		if !done[dep] {
			return false
		}
	}
	return true
}

func clone(wf *definition.Workflow) *definition.Workflow {
	out := *wf

	if wf.Steps != nil {
		out.Steps = make(map[string]*definition.Step, len(wf.Steps))
		for name, step := range wf.Steps {
			s := *step
			s.Depend = append([]string(nil), step.Depend...)
			if step.Template != nil {
				s.Template = make(map[string]any, len(step.Template))
				for k, v := range step.Template {
					s.Template[k] = v
				}
			}
			if step.Execution.Parameters != nil {
				s.Execution.Parameters = make(map[string]any, len(step.Execution.Parameters))
				for k, v := range step.Execution.Parameters {
					s.Execution.Parameters[k] = v
				}
			}
			out.Steps[name] = &s
		}
	}

	if wf.Apps != nil {
		out.Apps = make(map[string]*definition.AppRef, len(wf.Apps))
		for name, app := range wf.Apps {
			a := *app
			out.Apps[name] = &a
		}
	}

	return &out
}

package definition

import (
	"fmt"
	"regexp"

	"github.com/jhphan/geneflow/internal/errs"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func validateKeys(errs_ *errs.List, kind string, keys map[string]struct{}) {
	for k := range keys {
		if !keyPattern.MatchString(k) {
			errs_.Addf(k, "%s key %q must match [A-Za-z0-9_]+", kind, k)
		}
	}
}

func keySet[V any](m map[string]V) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// Validate checks App against the schema invariants of SPEC_FULL.md §3/§4.1.
func (a *App) Validate() error {
	var list errs.List
	if a.Name == "" {
		list.Addf("name", "app name is required")
	}
	validateKeys(&list, "inputs", keySet(a.Inputs))
	validateKeys(&list, "parameters", keySet(a.Parameters))
	validateKeys(&list, "images", keySet(a.Images))
	for _, m := range a.Execution.Methods {
		for _, c := range m.Commands {
			if err := c.validate(); err != nil {
				list.Add(err)
			}
		}
	}
	for _, r := range a.Execution.Pre {
		if err := r.validate(); err != nil {
			list.Add(err)
		}
	}
	for _, r := range a.Execution.Post {
		if err := r.validate(); err != nil {
			list.Add(err)
		}
	}
	return list.Err()
}

func (r RunRecord) validate() error {
	switch r.Kind {
	case KindDocker, KindSingularity, KindShell, "":
	default:
		return errs.Validation(fmt.Sprintf("invalid execution kind %q", r.Kind), "execution")
	}
	return nil
}

// Validate checks Workflow against the schema invariants. It does NOT
// check for cycles or dangling dependencies — that is the DAG analyzer's
// job (SPEC_FULL.md §4.2); this only validates the document's shape.
func (w *Workflow) Validate() error {
	var list errs.List
	if w.Name == "" {
		list.Addf("name", "workflow name is required")
	}
	if w.Apps == nil {
		list.Addf("apps", "apps is required")
	}
	if w.Steps == nil || len(w.Steps) == 0 {
		list.Addf("steps", "steps is required")
	}
	validateKeys(&list, "inputs", keySet(w.Inputs))
	validateKeys(&list, "parameters", keySet(w.Parameters))
	validateKeys(&list, "apps", keySet(w.Apps))
	validateKeys(&list, "steps", keySet(w.Steps))

	for name, step := range w.Steps {
		step.Name = name
		if err := step.validate(name); err != nil {
			list.Add(err)
		}
	}

	return list.Err()
}

func (s *Step) validate(name string) error {
	var list errs.List
	if s.AppName == "" && s.App == "" {
		list.Addf(name, "step %q must set either app_name or app", name)
	}
	if s.AppName != "" && s.App != "" {
		list.Addf(name, "step %q cannot set both app_name and app", name)
	}
	if s.Template == nil {
		list.Addf(name, "step %q template must include output", name)
	} else if _, ok := s.Template["output"]; !ok {
		list.Addf(name, "step %q template must include output", name)
	}
	switch s.Execution.Context {
	case "", "local", "gridengine", "slurm", "remote":
	default:
		list.Addf(name, "step %q has unknown execution context %q", name, s.Execution.Context)
	}
	return list.Err()
}

// Validate checks Job against the schema invariants.
func (j *Job) Validate() error {
	var list errs.List
	if j.Name == "" {
		list.Addf("name", "job name is required")
	}
	if j.OutputURI == "" {
		list.Addf("output_uri", "output_uri is required")
	}
	if len(j.WorkURI) == 0 {
		list.Addf("work_uri", "work_uri is required")
	}
	if _, ok := j.Execution.Context["default"]; len(j.Execution.Context) > 0 && !ok {
		list.Addf("execution.context", "execution.context must contain a default entry")
	}
	validateKeys(&list, "inputs", keySet(j.Inputs))
	validateKeys(&list, "parameters", keySet(j.Parameters))
	return list.Err()
}

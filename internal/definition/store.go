package definition

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"reflect"
	"strings"

	"github.com/goccy/go-yaml"

	gferrs "github.com/jhphan/geneflow/internal/errs"
)

// Store holds the name-unique registries of every app, workflow, and job
// loaded so far (SPEC_FULL.md §4.1). Loading a document is all-or-nothing:
// a document that fails validation contributes nothing to the Store.
type Store struct {
	apps      map[string]*App
	workflows map[string]*Workflow
	jobs      map[string]*Job
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		apps:      make(map[string]*App),
		workflows: make(map[string]*Workflow),
		jobs:      make(map[string]*Job),
	}
}

// LoadFile reads a multi-document YAML definition file from disk and loads
// every document it contains.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return gferrs.Wrap(gferrs.KindValidation, "cannot read definition file", path, err)
	}
	defer f.Close()
	return s.Load(f)
}

// Load reads every YAML document in r and routes each to AddApp,
// AddWorkflow, or AddJob according to its "class" discriminator. A batch
// document (top-level "apps:" or "jobs:" list) adds every entry in the
// batch. The whole call fails on the first invalid document and nothing
// from that call is kept; documents already added by prior calls to Load
// are unaffected.
func (s *Store) Load(r io.Reader) (err error) {
	apps, workflows, jobs := maps.Clone(s.apps), maps.Clone(s.workflows), maps.Clone(s.jobs)
	defer func() {
		if err != nil {
			s.apps, s.workflows, s.jobs = apps, workflows, jobs
		}
	}()

	dec := yaml.NewDecoder(r)
	n := 0
	for {
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return gferrs.Wrap(gferrs.KindValidation, "invalid yaml", fmt.Sprintf("document %d", n), err)
		}
		n++

		class, _ := raw["class"].(string)
		if class == "" {
			return gferrs.Validation("unspecified document class", fmt.Sprintf("document %d", n))
		}
		if v, ok := raw["gfVersion"]; ok {
			if v != GFVersion {
				return gferrs.Validation(fmt.Sprintf("unsupported gfVersion %v", v), fmt.Sprintf("document %d", n))
			}
			delete(raw, "gfVersion")
		}

		reencoded, err := yaml.Marshal(raw)
		if err != nil {
			return gferrs.Wrap(gferrs.KindValidation, "invalid yaml", fmt.Sprintf("document %d", n), err)
		}

		docLabel := fmt.Sprintf("document %d", n)

		switch class {
		case "app":
			if _, ok := raw["apps"]; ok {
				if err := checkUnknownKeys(raw, batchKeys("apps")); err != nil {
					return gferrs.Validation(err.Error(), docLabel)
				}
				var wrapper struct {
					Apps []App `yaml:"apps"`
				}
				if err := yaml.Unmarshal(reencoded, &wrapper); err != nil {
					return gferrs.Wrap(gferrs.KindValidation, "invalid app batch", docLabel, err)
				}
				for i := range wrapper.Apps {
					if err := s.AddApp(&wrapper.Apps[i]); err != nil {
						return err
					}
				}
			} else {
				if err := checkUnknownKeys(raw, structKeys(reflect.TypeOf(App{}))); err != nil {
					return gferrs.Validation(err.Error(), docLabel)
				}
				var app App
				if err := yaml.Unmarshal(reencoded, &app); err != nil {
					return gferrs.Wrap(gferrs.KindValidation, "invalid app", docLabel, err)
				}
				if err := s.AddApp(&app); err != nil {
					return err
				}
			}
		case "workflow":
			if err := checkUnknownKeys(raw, structKeys(reflect.TypeOf(Workflow{}))); err != nil {
				return gferrs.Validation(err.Error(), docLabel)
			}
			var wf Workflow
			if err := yaml.Unmarshal(reencoded, &wf); err != nil {
				return gferrs.Wrap(gferrs.KindValidation, "invalid workflow", docLabel, err)
			}
			if err := s.AddWorkflow(&wf); err != nil {
				return err
			}
		case "job":
			if _, ok := raw["jobs"]; ok {
				if err := checkUnknownKeys(raw, batchKeys("jobs")); err != nil {
					return gferrs.Validation(err.Error(), docLabel)
				}
				var wrapper struct {
					Jobs []Job `yaml:"jobs"`
				}
				if err := yaml.Unmarshal(reencoded, &wrapper); err != nil {
					return gferrs.Wrap(gferrs.KindValidation, "invalid job batch", docLabel, err)
				}
				for i := range wrapper.Jobs {
					if err := s.AddJob(&wrapper.Jobs[i]); err != nil {
						return err
					}
				}
			} else {
				if err := checkUnknownKeys(raw, structKeys(reflect.TypeOf(Job{}))); err != nil {
					return gferrs.Validation(err.Error(), docLabel)
				}
				var job Job
				if err := yaml.Unmarshal(reencoded, &job); err != nil {
					return gferrs.Wrap(gferrs.KindValidation, "invalid job", docLabel, err)
				}
				if err := s.AddJob(&job); err != nil {
					return err
				}
			}
		default:
			return gferrs.Validation(fmt.Sprintf("invalid document class %q", class), docLabel)
		}
	}
	return nil
}

// AddApp validates and registers a single app. The app's name must be
// unique within the Store.
func (s *Store) AddApp(app *App) error {
	if err := app.Validate(); err != nil {
		return err
	}
	if _, exists := s.apps[app.Name]; exists {
		return gferrs.Validation("duplicate app name", app.Name)
	}
	s.apps[app.Name] = app
	return nil
}

// AddWorkflow validates and registers a single workflow. Its name must be
// unique within the Store, and every one of its step keys becomes that
// step's Name.
func (s *Store) AddWorkflow(wf *Workflow) error {
	for name, step := range wf.Steps {
		step.Name = name
	}
	if err := wf.Validate(); err != nil {
		return err
	}
	if _, exists := s.workflows[wf.Name]; exists {
		return gferrs.Validation("duplicate workflow name", wf.Name)
	}
	s.workflows[wf.Name] = wf
	return nil
}

// AddJob validates and registers a single job. Its name must be unique
// within the Store.
func (s *Store) AddJob(job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if _, exists := s.jobs[job.Name]; exists {
		return gferrs.Validation("duplicate job name", job.Name)
	}
	s.jobs[job.Name] = job
	return nil
}

// App returns the named app, or false if no such app was loaded.
func (s *Store) App(name string) (*App, bool) {
	a, ok := s.apps[name]
	return a, ok
}

// Workflow returns the named workflow, or false if no such workflow was
// loaded.
func (s *Store) Workflow(name string) (*Workflow, bool) {
	w, ok := s.workflows[name]
	return w, ok
}

// Job returns the named job, or false if no such job was loaded.
func (s *Store) Job(name string) (*Job, bool) {
	j, ok := s.jobs[name]
	return j, ok
}

// Apps returns every app currently registered.
func (s *Store) Apps() map[string]*App { return s.apps }

// Workflows returns every workflow currently registered.
func (s *Store) Workflows() map[string]*Workflow { return s.workflows }

// Jobs returns every job currently registered.
func (s *Store) Jobs() map[string]*Job { return s.jobs }

// structKeys returns the set of top-level YAML keys t's fields decode
// from, plus "class". A document carrying any other top-level key (an
// unrelated batch container, or a typo) is rejected by checkUnknownKeys
// rather than silently dropped by the marshal/unmarshal round trip.
func structKeys(t reflect.Type) map[string]bool {
	keys := map[string]bool{"class": true}
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("yaml")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		keys[name] = true
	}
	return keys
}

// batchKeys returns the allowed top-level keys for a batch-wrapper
// document (class "app" or "job" carrying an "apps:"/"jobs:" list instead
// of a single entity's own fields).
func batchKeys(containerKey string) map[string]bool {
	return map[string]bool{"class": true, containerKey: true}
}

// checkUnknownKeys returns a ValidationError-worthy error if raw contains
// any top-level key not in allowed.
func checkUnknownKeys(raw map[string]any, allowed map[string]bool) error {
	for key := range raw {
		if !allowed[key] {
			return fmt.Errorf("unknown key %q", key)
		}
	}
	return nil
}

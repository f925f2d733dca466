// Package definition implements the Definition store of SPEC_FULL.md §4.1:
// parsing, schema validation, and name-unique registries for the three
// entity classes — App, Workflow, and Job.
package definition

// GFVersion is the only accepted value of the gfVersion discriminator.
const GFVersion = "v3.0"

// ExecutionKind is the {docker, singularity, shell} tag of one run record.
type ExecutionKind string

const (
	KindDocker      ExecutionKind = "docker"
	KindSingularity ExecutionKind = "singularity"
	KindShell       ExecutionKind = "shell"
)

// RunRecord is one tagged execution entry — used for an app's pre/post
// phases, a method's commands, and an input/parameter's post-processing
// rules. They all share this shape in the original schema.
type RunRecord struct {
	Kind  ExecutionKind `yaml:"type"`
	Image string        `yaml:"image,omitempty"`
	If    []string       `yaml:"if,omitempty"`
	Else  []string       `yaml:"else,omitempty"`
	Run   string         `yaml:"run"`
}

// Method is one named alternative within an app's "methods" phase; at most
// one is selected per run by matching its predicates.
type Method struct {
	Name     string      `yaml:"name"`
	If       []string    `yaml:"if,omitempty"`
	Commands []RunRecord `yaml:"commands,omitempty"`
}

// Execution is an app's three ordered phases.
type Execution struct {
	Pre     []RunRecord `yaml:"pre,omitempty"`
	Methods []Method    `yaml:"methods,omitempty"`
	Post    []RunRecord `yaml:"post,omitempty"`
}

// AppInput is a declared input of an App.
type AppInput struct {
	Description string      `yaml:"description,omitempty"`
	Default     string      `yaml:"default,omitempty"`
	Value       string      `yaml:"value,omitempty"`
	ScriptDefault string    `yaml:"script_default,omitempty"`
	Required    bool        `yaml:"required,omitempty"`
	TestValue   string      `yaml:"test_value,omitempty"`
	Post        []RunRecord `yaml:"post,omitempty"`
}

// AppParameter is a declared parameter of an App; shape mirrors AppInput.
type AppParameter struct {
	Description string      `yaml:"description,omitempty"`
	Default     string      `yaml:"default,omitempty"`
	Value       string      `yaml:"value,omitempty"`
	Required    bool        `yaml:"required,omitempty"`
	TestValue   string      `yaml:"test_value,omitempty"`
	Post        []RunRecord `yaml:"post,omitempty"`
}

// App is a reusable unit of computation (SPEC_FULL.md §3).
type App struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description,omitempty"`
	Git         string                   `yaml:"git,omitempty"`
	Version     string                   `yaml:"version,omitempty"`
	Author      string                   `yaml:"author,omitempty"`
	Inputs      map[string]*AppInput     `yaml:"inputs,omitempty"`
	Parameters  map[string]*AppParameter `yaml:"parameters,omitempty"`
	Images      map[string]string        `yaml:"images,omitempty"`
	Execution   Execution                `yaml:"execution,omitempty"`
}

// WorkflowValue is a workflow-level input or parameter declaration; values
// may be a scalar or an ordered sequence of strings.
type WorkflowValue struct {
	Description string       `yaml:"description,omitempty"`
	Default     StringOrList `yaml:"default,omitempty"`
	Value       StringOrList `yaml:"value,omitempty"`
}

// AppRef binds an app used by a workflow to a specific git URI/version and
// overrides its input/parameter/image bindings.
type AppRef struct {
	Git        string            `yaml:"git,omitempty"`
	Version    string            `yaml:"version,omitempty"`
	Inputs     map[string]string `yaml:"inputs,omitempty"`
	Parameters map[string]string `yaml:"parameters,omitempty"`
	Images     map[string]string `yaml:"images,omitempty"`
}

// MapSpec describes how a step enumerates its map items.
type MapSpec struct {
	URI       string `yaml:"uri,omitempty"`
	Glob      string `yaml:"glob,omitempty"`
	Regex     string `yaml:"regex,omitempty"`
	Inclusive bool   `yaml:"inclusive,omitempty"`
}

// StepExecution is a step's chosen backend context, method, and any
// context-specific parameters.
type StepExecution struct {
	Context    string         `yaml:"context,omitempty"`
	Method     string         `yaml:"method,omitempty"`
	Parameters map[string]any `yaml:"parameters,omitempty"`
}

// Step is one node of a workflow's DAG.
type Step struct {
	Name      string            `yaml:"-"`
	AppName   string            `yaml:"app_name,omitempty"`
	App       string            `yaml:"app,omitempty"`
	Depend    []string          `yaml:"depend,omitempty"`
	Number    int               `yaml:"number,omitempty"`
	Letter    string            `yaml:"letter,omitempty"`
	Map       MapSpec           `yaml:"map,omitempty"`
	Template  map[string]any    `yaml:"template,omitempty"`
	Publish   bool              `yaml:"publish,omitempty"`
	Execution StepExecution     `yaml:"execution,omitempty"`
}

// Workflow is a named DAG of steps.
type Workflow struct {
	Name        string                    `yaml:"name"`
	Description string                    `yaml:"description,omitempty"`
	Git         string                    `yaml:"git,omitempty"`
	Version     string                    `yaml:"version,omitempty"`
	Author      string                    `yaml:"author,omitempty"`
	Inputs      map[string]*WorkflowValue `yaml:"inputs,omitempty"`
	Parameters  map[string]*WorkflowValue `yaml:"parameters,omitempty"`
	Publish     []string                  `yaml:"publish,omitempty"`
	Apps        map[string]*AppRef        `yaml:"apps"`
	Steps       map[string]*Step          `yaml:"steps"`
}

// JobExecution is a job's per-step (or "default") override of context,
// method, and backend parameters.
type JobExecution struct {
	Context    map[string]string         `yaml:"context,omitempty"`
	Method     map[string]string         `yaml:"method,omitempty"`
	Parameters map[string]map[string]any `yaml:"parameters,omitempty"`
}

// EffectiveContext resolves the context for a step: its own override, or
// the "default" entry.
func (e JobExecution) EffectiveContext(step string) string {
	if v, ok := e.Context[step]; ok {
		return v
	}
	return e.Context["default"]
}

// EffectiveMethod resolves the method for a step: its own override, or the
// "default" entry.
func (e JobExecution) EffectiveMethod(step string) string {
	if v, ok := e.Method[step]; ok {
		return v
	}
	return e.Method["default"]
}

// EffectiveParameters resolves backend parameters for a step: its own
// override, or the "default" entry.
func (e JobExecution) EffectiveParameters(step string) map[string]any {
	if v, ok := e.Parameters[step]; ok {
		return v
	}
	return e.Parameters["default"]
}

// Job is a concrete invocation of a workflow.
type Job struct {
	Name         string                  `yaml:"name"`
	User         string                  `yaml:"username,omitempty"`
	WorkflowName string                  `yaml:"workflow_name,omitempty"`
	OutputURI    string                  `yaml:"output_uri"`
	WorkURI      map[string]string       `yaml:"work_uri"`
	NoOutputHash bool                    `yaml:"no_output_hash,omitempty"`
	Inputs       map[string]StringOrList `yaml:"inputs,omitempty"`
	Parameters   map[string]StringOrList `yaml:"parameters,omitempty"`
	Publish      []string                `yaml:"publish,omitempty"`
	Execution    JobExecution            `yaml:"execution,omitempty"`
}

package definition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validApp() *App {
	return &App{
		Name: "hello",
		Inputs: map[string]*AppInput{
			"input": {Default: "in.txt"},
		},
		Execution: Execution{
			Methods: []Method{
				{Name: "auto", Commands: []RunRecord{{Kind: KindShell, Run: "echo hi"}}},
			},
		},
	}
}

func TestApp_Validate_OK(t *testing.T) {
	require.NoError(t, validApp().Validate())
}

func TestApp_Validate_MissingName(t *testing.T) {
	app := validApp()
	app.Name = ""
	require.Error(t, app.Validate())
}

func TestApp_Validate_BadKeyName(t *testing.T) {
	app := validApp()
	app.Inputs["bad-name"] = &AppInput{Default: "x"}
	require.Error(t, app.Validate())
}

func TestApp_Validate_BadExecutionKind(t *testing.T) {
	app := validApp()
	app.Execution.Methods[0].Commands[0].Kind = "vm"
	require.Error(t, app.Validate())
}

func validWorkflow() *Workflow {
	return &Workflow{
		Name: "align_workflow",
		Apps: map[string]*AppRef{
			"align": {},
		},
		Steps: map[string]*Step{
			"align": {
				AppName:  "align",
				Template: map[string]any{"output": "{output_uri}/align"},
			},
		},
	}
}

func TestWorkflow_Validate_OK(t *testing.T) {
	require.NoError(t, validWorkflow().Validate())
}

func TestWorkflow_Validate_MissingSteps(t *testing.T) {
	wf := validWorkflow()
	wf.Steps = nil
	require.Error(t, wf.Validate())
}

func TestStep_Validate_RequiresAppNameOrApp(t *testing.T) {
	wf := validWorkflow()
	wf.Steps["align"].AppName = ""
	require.Error(t, wf.Validate())
}

func TestStep_Validate_RejectsBothAppNameAndApp(t *testing.T) {
	wf := validWorkflow()
	wf.Steps["align"].App = "some/app"
	require.Error(t, wf.Validate())
}

func TestStep_Validate_RequiresOutputTemplate(t *testing.T) {
	wf := validWorkflow()
	wf.Steps["align"].Template = map[string]any{"other": "x"}
	require.Error(t, wf.Validate())
}

func TestStep_Validate_UnknownContext(t *testing.T) {
	wf := validWorkflow()
	wf.Steps["align"].Execution.Context = "kubernetes"
	require.Error(t, wf.Validate())
}

func validJob() *Job {
	return &Job{
		Name:      "job1",
		OutputURI: "local:///output",
		WorkURI:   map[string]string{"local": "local:///work"},
	}
}

func TestJob_Validate_OK(t *testing.T) {
	require.NoError(t, validJob().Validate())
}

func TestJob_Validate_MissingOutputURI(t *testing.T) {
	job := validJob()
	job.OutputURI = ""
	require.Error(t, job.Validate())
}

func TestJob_Validate_ExecutionContextRequiresDefault(t *testing.T) {
	job := validJob()
	job.Execution.Context = map[string]string{"align": "gridengine"}
	require.Error(t, job.Validate())
}

func TestJob_Validate_ExecutionContextWithDefaultOK(t *testing.T) {
	job := validJob()
	job.Execution.Context = map[string]string{"default": "local", "align": "gridengine"}
	require.NoError(t, job.Validate())
}

package definition

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const appDoc = `
class: app
name: hello_app
description: says hello
git: https://github.com/example/hello_app
version: "1.0"
inputs:
  input:
    description: input file
    default: in.txt
execution:
  methods:
    - name: auto
      commands:
        - type: shell
          run: echo hello
`

const workflowDoc = `
class: workflow
name: hello_workflow
description: a single step workflow
git: https://github.com/example/hello_workflow
version: "1.0"
apps:
  hello:
    git: https://github.com/example/hello_app
steps:
  hello:
    app_name: hello
    template:
      output: "{output_uri}/hello"
`

const jobDoc = `
class: job
name: hello_job
workflow_name: hello_workflow
output_uri: local:///tmp/output
work_uri:
  local: local:///tmp/work
`

func TestStore_LoadSingleApp(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Load(strings.NewReader(appDoc)))
	app, ok := s.App("hello_app")
	require.True(t, ok)
	require.Equal(t, "hello_app", app.Name)
}

func TestStore_LoadWorkflowAndJob(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Load(strings.NewReader(workflowDoc)))
	require.NoError(t, s.Load(strings.NewReader(jobDoc)))

	wf, ok := s.Workflow("hello_workflow")
	require.True(t, ok)
	require.Contains(t, wf.Steps, "hello")
	require.Equal(t, "hello", wf.Steps["hello"].Name)

	job, ok := s.Job("hello_job")
	require.True(t, ok)
	require.Equal(t, "local:///tmp/output", job.OutputURI)
}

func TestStore_LoadAppBatch(t *testing.T) {
	batch := `
class: app
apps:
  - name: app_one
    git: https://example.com/one
  - name: app_two
    git: https://example.com/two
`
	s := NewStore()
	require.NoError(t, s.Load(strings.NewReader(batch)))
	_, ok1 := s.App("app_one")
	_, ok2 := s.App("app_two")
	require.True(t, ok1)
	require.True(t, ok2)
}

func TestStore_LoadMultiDocument(t *testing.T) {
	combined := appDoc + "\n---\n" + workflowDoc + "\n---\n" + jobDoc
	s := NewStore()
	require.NoError(t, s.Load(strings.NewReader(combined)))
	require.Len(t, s.Apps(), 1)
	require.Len(t, s.Workflows(), 1)
	require.Len(t, s.Jobs(), 1)
}

func TestStore_LoadMissingClassFails(t *testing.T) {
	s := NewStore()
	err := s.Load(strings.NewReader("name: foo\n"))
	require.Error(t, err)
}

func TestStore_LoadUnknownClassFails(t *testing.T) {
	s := NewStore()
	err := s.Load(strings.NewReader("class: bogus\nname: foo\n"))
	require.Error(t, err)
}

func TestStore_AddAppDuplicateNameFails(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Load(strings.NewReader(appDoc)))
	err := s.Load(strings.NewReader(appDoc))
	require.Error(t, err)
}

func TestStore_LoadInvalidDocumentAddsNothing(t *testing.T) {
	bad := `
class: app
name: ""
`
	s := NewStore()
	err := s.Load(strings.NewReader(bad))
	require.Error(t, err)
	require.Empty(t, s.Apps())
}

func TestStore_LoadAppUnknownKeyFails(t *testing.T) {
	bad := `
class: app
name: hello_app
bogus_key: true
`
	s := NewStore()
	err := s.Load(strings.NewReader(bad))
	require.Error(t, err)
	require.Empty(t, s.Apps())
}

func TestStore_LoadWorkflowWithBatchContainerKeyFails(t *testing.T) {
	bad := `
class: workflow
name: hello_workflow
jobs:
  - name: stray_job
steps:
  hello:
    app_name: hello
    template:
      output: "{output_uri}/hello"
`
	s := NewStore()
	err := s.Load(strings.NewReader(bad))
	require.Error(t, err)
	require.Empty(t, s.Workflows())
}

func TestStore_LoadJobBatchWithUnknownKeyFails(t *testing.T) {
	bad := `
class: job
jobs:
  - name: job_one
    output_uri: local:///tmp/output
    work_uri:
      local: local:///tmp/work
apps:
  - name: stray_app
`
	s := NewStore()
	err := s.Load(strings.NewReader(bad))
	require.Error(t, err)
	require.Empty(t, s.Jobs())
}

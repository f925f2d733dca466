package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jhphan/geneflow/internal/definition"
)

func step(appName string, depend ...string) *definition.Step {
	return &definition.Step{
		AppName:  appName,
		Depend:   depend,
		Template: map[string]any{"output": "{output_uri}/" + appName},
	}
}

func TestNumber_LinearChain(t *testing.T) {
	wf := &definition.Workflow{
		Name: "linear",
		Steps: map[string]*definition.Step{
			"a": step("app_a"),
			"b": step("app_b", "a"),
			"c": step("app_c", "b"),
		},
	}

	numbered, err := Number(wf)
	require.NoError(t, err)
	require.Equal(t, 1, numbered.Steps["a"].Number)
	require.Equal(t, 2, numbered.Steps["b"].Number)
	require.Equal(t, 3, numbered.Steps["c"].Number)
	require.Empty(t, numbered.Steps["a"].Letter)
}

func TestNumber_ParallelStepsGetLetters(t *testing.T) {
	wf := &definition.Workflow{
		Name: "fanout",
		Steps: map[string]*definition.Step{
			"align":     step("app_align"),
			"qc":        step("app_qc", "align"),
			"variant":   step("app_variant", "align"),
			"summarize": step("app_summarize", "qc", "variant"),
		},
	}

	numbered, err := Number(wf)
	require.NoError(t, err)
	require.Equal(t, 1, numbered.Steps["align"].Number)
	require.Equal(t, 2, numbered.Steps["qc"].Number)
	require.Equal(t, 2, numbered.Steps["variant"].Number)
	require.Equal(t, "a", numbered.Steps["qc"].Letter)
	require.Equal(t, "b", numbered.Steps["variant"].Letter)
	require.Equal(t, 3, numbered.Steps["summarize"].Number)
	require.Empty(t, numbered.Steps["summarize"].Letter)
}

func TestNumber_DetectsCycle(t *testing.T) {
	wf := &definition.Workflow{
		Name: "cyclic",
		Steps: map[string]*definition.Step{
			"a": step("app_a", "b"),
			"b": step("app_b", "a"),
		},
	}

	_, err := Number(wf)
	require.Error(t, err)
}

func TestNumber_DetectsDanglingDependency(t *testing.T) {
	wf := &definition.Workflow{
		Name: "dangling",
		Steps: map[string]*definition.Step{
			"a": step("app_a", "nonexistent"),
		},
	}

	_, err := Number(wf)
	require.Error(t, err)
}

func TestNumber_DoesNotMutateInput(t *testing.T) {
	wf := &definition.Workflow{
		Name: "linear",
		Steps: map[string]*definition.Step{
			"a": step("app_a"),
			"b": step("app_b", "a"),
		},
	}

	_, err := Number(wf)
	require.NoError(t, err)
	require.Equal(t, 0, wf.Steps["a"].Number)
	require.Equal(t, 0, wf.Steps["b"].Number)
}

func TestRoots(t *testing.T) {
	wf := &definition.Workflow{
		Steps: map[string]*definition.Step{
			"a": step("app_a"),
			"b": step("app_b", "a"),
			"c": step("app_c"),
		},
	}
	require.Equal(t, []string{"a", "c"}, Roots(wf))
}

func TestDependents(t *testing.T) {
	wf := &definition.Workflow{
		Steps: map[string]*definition.Step{
			"a": step("app_a"),
			"b": step("app_b", "a"),
			"c": step("app_c", "a"),
		},
	}
	require.Equal(t, []string{"b", "c"}, Dependents(wf, "a"))
}

func TestReady(t *testing.T) {
	wf := &definition.Workflow{
		Steps: map[string]*definition.Step{
			"a": step("app_a"),
			"b": step("app_b", "a"),
		},
	}
	require.True(t, Ready(wf, "a", map[string]bool{}))
	require.False(t, Ready(wf, "b", map[string]bool{}))
	require.True(t, Ready(wf, "b", map[string]bool{"a": true}))
}

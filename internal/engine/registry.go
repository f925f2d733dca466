// Package engine implements the workflow engine of SPEC_FULL.md §4.5: it
// drives a numbered DAG to completion, instantiating the right context
// adapter for each step and propagating output URIs between dependent
// steps.
package engine

import (
	"fmt"

	"github.com/jhphan/geneflow/internal/datamgr"
	"github.com/jhphan/geneflow/internal/definition"
	"github.com/jhphan/geneflow/internal/stepstate"
)

// Registry resolves the polymorphic pieces the engine needs but does not
// itself construct: a Backend for a step's effective execution context,
// and a Ctx for the scheme a URI names. cmd/geneflow builds the concrete
// Registry from loaded configuration; the engine only consumes it.
type Registry interface {
	// Backend returns the stepstate.Backend for the named execution
	// context (e.g. "local", "gridengine", "slurm", "remote"), configured
	// with app and any job-supplied backend parameters for this step.
	Backend(contextName string, app *definition.App, params map[string]any) (stepstate.Backend, error)

	// Ctx returns the datamgr.Ctx that addresses the given scheme.
	Ctx(scheme datamgr.Scheme) (datamgr.Ctx, error)
}

// staticRegistry is a Registry backed by pre-built values: every step
// with the same execution context shares one Backend instance. The
// registry cmd/geneflow uses is built by internal/config instead, which
// constructs a fresh Backend per call.
type staticRegistry struct {
	backends map[string]stepstate.Backend
	ctxs     map[datamgr.Scheme]datamgr.Ctx
}

// NewStaticRegistry builds a Registry from pre-constructed backends and
// contexts, ignoring per-step parameters — sufficient for a single job run
// where every step's backend/context is fully determined by configuration
// rather than per-item runtime values.
func NewStaticRegistry(backends map[string]stepstate.Backend, ctxs map[datamgr.Scheme]datamgr.Ctx) Registry {
	return &staticRegistry{backends: backends, ctxs: ctxs}
}

func (r *staticRegistry) Backend(contextName string, _ *definition.App, _ map[string]any) (stepstate.Backend, error) {
	b, ok := r.backends[contextName]
	if !ok {
		return nil, fmt.Errorf("no backend registered for execution context %q", contextName)
	}
	return b, nil
}

func (r *staticRegistry) Ctx(scheme datamgr.Scheme) (datamgr.Ctx, error) {
	c, ok := r.ctxs[scheme]
	if !ok {
		return nil, fmt.Errorf("no context registered for scheme %q", scheme)
	}
	return c, nil
}

package datamgr

import (
	"context"
	"fmt"
	"io"

	"github.com/jhphan/geneflow/internal/errs"
)

// backend is the per-scheme implementation a Manager dispatches to. Open
// and Create exist only to let Manager.Copy move data between two
// different schemes without every backend pair needing its own code path.
type backend interface {
	Exists(ctx context.Context, uri URI, c Ctx) (bool, error)
	List(ctx context.Context, uri URI, c Ctx) ([]string, error)
	Mkdir(ctx context.Context, uri URI, recursive bool, c Ctx) error
	Delete(ctx context.Context, uri URI, c Ctx) error
	Open(ctx context.Context, uri URI, c Ctx) (io.ReadCloser, error)
	Create(ctx context.Context, uri URI, c Ctx) (io.WriteCloser, error)
}

// Manager is the Data manager interface of SPEC_FULL.md §4.3: exists,
// list, mkdir, delete, and copy, each dispatched by the scheme carried in
// the Ctx argument. Every method is re-entrant and safe for concurrent use
// across sibling steps.
type Manager interface {
	Exists(ctx context.Context, uri URI, c Ctx) (bool, error)
	List(ctx context.Context, uri URI, c Ctx) ([]string, error)
	Mkdir(ctx context.Context, uri URI, recursive bool, c Ctx) error
	Delete(ctx context.Context, uri URI, c Ctx) error
	Copy(ctx context.Context, src URI, srcCtx Ctx, dst URI, dstCtx Ctx) error
	CopyTree(ctx context.Context, src URI, srcCtx Ctx, dst URI, dstCtx Ctx) error
}

// manager is the default Manager, dispatching each call to the backend
// whose scheme matches the Ctx's concrete type.
type manager struct {
	backends map[Scheme]backend
}

// NewManager builds a Manager with the standard four backends wired in.
func NewManager() Manager {
	return &manager{
		backends: map[Scheme]backend{
			SchemeLocal:  localBackend{},
			SchemeSSH:    sshBackend{},
			SchemeRemote: remoteBackend{},
			SchemeS3:     s3Backend{},
		},
	}
}

func (m *manager) backendFor(c Ctx) (backend, error) {
	b, ok := m.backends[c.scheme()]
	if !ok {
		return nil, errs.Data(fmt.Sprintf("no backend registered for scheme %q", c.scheme()), "")
	}
	return b, nil
}

func (m *manager) Exists(ctx context.Context, uri URI, c Ctx) (bool, error) {
	b, err := m.backendFor(c)
	if err != nil {
		return false, err
	}
	ok, err := b.Exists(ctx, uri, c)
	if err != nil {
		return false, errs.Wrap(errs.KindData, "exists failed", uri.String(), err)
	}
	return ok, nil
}

func (m *manager) List(ctx context.Context, uri URI, c Ctx) ([]string, error) {
	b, err := m.backendFor(c)
	if err != nil {
		return nil, err
	}
	names, err := b.List(ctx, uri, c)
	if err != nil {
		return nil, errs.Wrap(errs.KindData, "list failed", uri.String(), err)
	}
	return names, nil
}

func (m *manager) Mkdir(ctx context.Context, uri URI, recursive bool, c Ctx) error {
	b, err := m.backendFor(c)
	if err != nil {
		return err
	}
	if err := b.Mkdir(ctx, uri, recursive, c); err != nil {
		return errs.Wrap(errs.KindData, "mkdir failed", uri.String(), err)
	}
	return nil
}

func (m *manager) Delete(ctx context.Context, uri URI, c Ctx) error {
	b, err := m.backendFor(c)
	if err != nil {
		return err
	}
	if err := b.Delete(ctx, uri, c); err != nil {
		return errs.Wrap(errs.KindData, "delete failed", uri.String(), err)
	}
	return nil
}

func (m *manager) Copy(ctx context.Context, src URI, srcCtx Ctx, dst URI, dstCtx Ctx) error {
	srcBackend, err := m.backendFor(srcCtx)
	if err != nil {
		return err
	}
	dstBackend, err := m.backendFor(dstCtx)
	if err != nil {
		return err
	}

	r, err := srcBackend.Open(ctx, src, srcCtx)
	if err != nil {
		return errs.Wrap(errs.KindData, "copy: open source failed", src.String(), err)
	}
	defer r.Close()

	w, err := dstBackend.Create(ctx, dst, dstCtx)
	if err != nil {
		return errs.Wrap(errs.KindData, "copy: create destination failed", dst.String(), err)
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return errs.Wrap(errs.KindData, "copy failed", fmt.Sprintf("%s -> %s", src.String(), dst.String()), err)
	}
	if err := w.Close(); err != nil {
		return errs.Wrap(errs.KindData, "copy: close destination failed", dst.String(), err)
	}
	return nil
}

// CopyTree recursively copies every entry under src to dst, creating
// destination directories as needed. An entry is treated as a
// subdirectory if listing it succeeds (even if empty); listing failure
// means it is a plain file, copied with Copy. Used wherever a step's
// output (one subdirectory per map item) needs to move as a whole between
// schemes, since Copy alone only moves a single file.
func (m *manager) CopyTree(ctx context.Context, src URI, srcCtx Ctx, dst URI, dstCtx Ctx) error {
	srcBackend, err := m.backendFor(srcCtx)
	if err != nil {
		return err
	}

	names, err := srcBackend.List(ctx, src, srcCtx)
	if err != nil {
		// Not a directory: src names a single file.
		return m.Copy(ctx, src, srcCtx, dst, dstCtx)
	}

	if err := m.Mkdir(ctx, dst, true, dstCtx); err != nil {
		return err
	}
	for _, name := range names {
		if err := m.CopyTree(ctx, src.Join(name), srcCtx, dst.Join(name), dstCtx); err != nil {
			return errs.Wrap(errs.KindData, fmt.Sprintf("cannot copy tree entry %q", name), src.String(), err)
		}
	}
	return nil
}

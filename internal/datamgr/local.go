package datamgr

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// localBackend addresses the filesystem the engine process itself runs
// on — the scheme used by the engine's own work/output directories and
// by any single-host execution context.
type localBackend struct{}

func (localBackend) Exists(_ context.Context, uri URI, _ Ctx) (bool, error) {
	_, err := os.Stat(uri.ChoppedPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (localBackend) List(_ context.Context, uri URI, _ Ctx) ([]string, error) {
	entries, err := os.ReadDir(uri.ChoppedPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (localBackend) Mkdir(_ context.Context, uri URI, recursive bool, _ Ctx) error {
	if recursive {
		return os.MkdirAll(uri.ChoppedPath, 0o755)
	}
	return os.Mkdir(uri.ChoppedPath, 0o755)
}

func (localBackend) Delete(_ context.Context, uri URI, _ Ctx) error {
	return os.RemoveAll(uri.ChoppedPath)
}

func (localBackend) Open(_ context.Context, uri URI, _ Ctx) (io.ReadCloser, error) {
	return os.Open(uri.ChoppedPath)
}

func (localBackend) Create(_ context.Context, uri URI, _ Ctx) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(uri.ChoppedPath), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory: %w", err)
	}
	return os.Create(uri.ChoppedPath)
}

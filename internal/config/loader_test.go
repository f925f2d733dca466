package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 3, cfg.RetryLimit)
	require.Equal(t, 5*time.Second, cfg.PollInterval)
	require.Contains(t, cfg.Contexts, "local")
	require.Contains(t, cfg.DataContexts, "local")
}

func TestLoad_OverlaysFileOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geneflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retry_limit: 5
poll_interval: 10s
contexts:
  gridengine:
    kind: gridengine
    ssh_host: grid.example.org
    ssh_user: pipeline
data_contexts:
  scratch:
    kind: s3
    s3_endpoint: s3.example.org
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.RetryLimit)
	require.Equal(t, 10*time.Second, cfg.PollInterval)
	require.Equal(t, "grid.example.org", cfg.Contexts["gridengine"].SSHHost)
	require.Equal(t, "s3.example.org", cfg.DataContexts["scratch"].S3Endpoint)
	// Defaults for unspecified sections survive the overlay.
	require.Contains(t, cfg.Contexts, "local")
}

func TestLoad_MissingExplicitFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

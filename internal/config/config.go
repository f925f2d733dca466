// Package config loads the process configuration of SPEC_FULL.md §2.9:
// per-execution-context backend settings (local, gridengine/slurm over
// SSH, a remote HPC gateway), per-scheme data context settings, and the
// engine's retry/poll defaults. cmd/geneflow is the only caller; every
// other package only sees the concrete datamgr.Ctx/stepstate.Backend
// values config.Build produces.
package config

import "time"

// ContextConfig describes one execution context entry: which backend
// family it is, and the settings that family needs. Only the fields for
// Kind are read; the rest are ignored, mirroring how the teacher's own
// admin config tolerates unused fields per section.
type ContextConfig struct {
	Kind string `mapstructure:"kind"` // "local", "gridengine", "slurm", or "remote"

	// gridengine/slurm
	SSHHost        string `mapstructure:"ssh_host"`
	SSHPort        int    `mapstructure:"ssh_port"`
	SSHUser        string `mapstructure:"ssh_user"`
	SSHKeyFile     string `mapstructure:"ssh_key_file"`
	RemoteWorkDir  string `mapstructure:"remote_work_dir"`

	// remote
	RemoteBaseURL string `mapstructure:"remote_base_url"`
	RemoteToken   string `mapstructure:"remote_token"`
}

// DataContextConfig describes one data-manager scheme entry.
type DataContextConfig struct {
	Kind string `mapstructure:"kind"` // "local", "ssh", "remote", or "s3"

	SSHHost    string `mapstructure:"ssh_host"`
	SSHPort    int    `mapstructure:"ssh_port"`
	SSHUser    string `mapstructure:"ssh_user"`
	SSHKeyFile string `mapstructure:"ssh_key_file"`

	RemoteBaseURL string `mapstructure:"remote_base_url"`
	RemoteToken   string `mapstructure:"remote_token"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`
}

// Config is the fully decoded process configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	RetryLimit   int           `mapstructure:"retry_limit"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Clean        bool          `mapstructure:"clean"`

	Contexts     map[string]ContextConfig     `mapstructure:"contexts"`
	DataContexts map[string]DataContextConfig `mapstructure:"data_contexts"`
}

// defaults returns a Config with every field the user is allowed to omit
// already filled in, so Load only has to overlay what the file sets.
func defaults() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		RetryLimit:   3,
		PollInterval: 5 * time.Second,
		Contexts: map[string]ContextConfig{
			"local": {Kind: "local"},
		},
		DataContexts: map[string]DataContextConfig{
			"local": {Kind: "local"},
		},
	}
}

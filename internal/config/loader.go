package config

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/spf13/viper"
)

// Load reads the YAML configuration file at path, overlays it onto
// defaults(), and returns the merged Config. An empty path looks for
// "geneflow" in the current directory and $HOME/.config/geneflow, mirroring
// the teacher's own viper.AddConfigPath/SetConfigName bootstrap in
// cmd/main.go.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("geneflow")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/geneflow")
	}

	var loaded Config
	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		// No config file found at the default locations: run on defaults
		// alone, matching the CLI's "config is optional" contract.
		return defaults(), nil
	}
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, fmt.Errorf("decode config %q: %w", path, err)
	}

	cfg := defaults()
	if err := mergo.Merge(cfg, loaded, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge config defaults: %w", err)
	}
	return cfg, nil
}

package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bucketsource/bucketsource/pkg/errors"
)

// LoadFile reads a YAML connection config from disk, applies defaults, and
// validates it.
func LoadFile(path string) (*ConnectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}
	return Load(data)
}

// Load parses a YAML connection config, applies defaults, and validates it.
func Load(data []byte) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config")
	}

	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

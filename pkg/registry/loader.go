package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk layout of the model registry file.
type Config struct {
	Models []ModelDescriptor `yaml:"models"`
}

// LoadConfig reads a YAML registry file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrInvalidConfig, path, err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes registry YAML and checks that the first model is probeable.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse: %w", ErrInvalidConfig, err)
	}

	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, ErrNoModels)
	}
	if _, err := cfg.Models[0].Resolve(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &cfg, nil
}

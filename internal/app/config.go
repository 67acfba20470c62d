package app

import (
	"fmt"

	"github.com/specialistvlad/gridworker/internal/config"
)

// Config holds what the entrypoint determined: an optional config file and
// the layers that override it.
type Config struct {
	ConfigPath string
	// Overrides holds values from the environment and explicitly set flags.
	Overrides config.Model
}

// NewConfig validates the overrides.
func NewConfig(cfg Config) (*Config, error) {
	if err := cfg.Overrides.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolve layers defaults, the file model and the overrides.
func resolve(file *config.Model, overrides config.Model) (*config.Model, error) {
	model := config.Default()
	model.Merge(file)
	model.Merge(&overrides)
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return model, nil
}

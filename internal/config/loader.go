package config

import "context"

// Loader reads a configuration file into a partial Model.
type Loader interface {
	Load(ctx context.Context, path string) (*Model, error)
}

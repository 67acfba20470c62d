package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Model is the worker's configuration.
type Model struct {
	Worker      Worker
	Log         Log
	Healthcheck Healthcheck
}

// Worker configures the upstream listener and the worker's filesystem.
type Worker struct {
	Listen       string
	WorkDir      string
	OnDisconnect string
}

// Log configures the process logger.
type Log struct {
	Level  string
	Format string
}

// Healthcheck configures the health and metrics HTTP server. A zero port
// leaves the server disabled unless a lower layer enables it.
type Healthcheck struct {
	Port int
}

// DefaultListen is the upstream listen address used when none is configured.
const DefaultListen = ":7210"

// Default returns the built-in defaults.
func Default() *Model {
	return &Model{
		Worker: Worker{
			Listen:       DefaultListen,
			WorkDir:      filepath.Join(os.TempDir(), "gridworker"),
			OnDisconnect: "abort",
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// Merge overlays every set field of other onto m.
func (m *Model) Merge(other *Model) {
	if other == nil {
		return
	}
	setString(&m.Worker.Listen, other.Worker.Listen)
	setString(&m.Worker.WorkDir, other.Worker.WorkDir)
	setString(&m.Worker.OnDisconnect, other.Worker.OnDisconnect)
	setString(&m.Log.Level, other.Log.Level)
	setString(&m.Log.Format, other.Log.Format)
	if other.Healthcheck.Port != 0 {
		m.Healthcheck.Port = other.Healthcheck.Port
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks every set field. It accepts partial models.
func (m *Model) Validate() error {
	switch strings.ToLower(m.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be 'text' or 'json'", m.Log.Format)
	}
	switch strings.ToLower(m.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", m.Log.Level)
	}
	switch strings.ToLower(m.Worker.OnDisconnect) {
	case "", "abort", "unregister":
	default:
		return fmt.Errorf("invalid on_disconnect %q: must be 'abort' or 'unregister'", m.Worker.OnDisconnect)
	}
	if m.Healthcheck.Port < 0 || m.Healthcheck.Port > 65535 {
		return fmt.Errorf("invalid healthcheck port %d", m.Healthcheck.Port)
	}
	return nil
}

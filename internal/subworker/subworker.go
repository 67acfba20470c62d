// Package subworker holds the worker's registry of live subworker
// connections.
package subworker

import (
	"context"

	"github.com/specialistvlad/gridworker/internal/data"
	"github.com/specialistvlad/gridworker/internal/wire"
)

// ControlHandle is the capability the worker keeps to command a registered
// subworker.
type ControlHandle interface {
	// ID identifies the underlying connection.
	ID() string
	// RunTask sends a task and waits for its localized outputs.
	RunTask(ctx context.Context, task wire.RunTask) ([]*data.Data, error)
	// Close tears the connection down.
	Close() error
}

// Entry is one registered subworker.
type Entry struct {
	ID       int
	TypeName string
	Control  ControlHandle
	// WorkDir is the subworker's private directory. Paths it reports must
	// lie inside it.
	WorkDir string
}

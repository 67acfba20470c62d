package upstream

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/gridworker/internal/data"
	"github.com/specialistvlad/gridworker/internal/subworker"
	"github.com/specialistvlad/gridworker/internal/testutil"
	"github.com/specialistvlad/gridworker/internal/wire"
	"github.com/specialistvlad/gridworker/internal/worker"
	"github.com/stretchr/testify/require"
)

type stubControl struct{ id string }

func (s *stubControl) ID() string { return s.id }
func (s *stubControl) RunTask(context.Context, wire.RunTask) ([]*data.Data, error) {
	return nil, nil
}
func (s *stubControl) Close() error { return nil }

func newTestState(t *testing.T) *worker.State {
	return testutil.NewState(t)
}

// writeFile creates a file with content under dir and returns its path.
func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func mustRegister(t *testing.T, h *Handler, req wire.RegisterRequest, control subworker.ControlHandle) *subworker.Entry {
	t.Helper()
	entry, err := h.Register(context.Background(), req, control)
	require.NoError(t, err)
	return entry
}

package testutil

import (
	"testing"

	"github.com/specialistvlad/gridworker/internal/workdir"
	"github.com/specialistvlad/gridworker/internal/worker"
	"github.com/stretchr/testify/require"
)

// NewState returns a worker State rooted in a fresh temporary directory.
func NewState(t *testing.T) *worker.State {
	t.Helper()
	wd, err := workdir.New(t.TempDir())
	require.NoError(t, err)
	st, err := worker.NewState(wd)
	require.NoError(t, err)
	return st
}

// Package workdir owns the worker's private directory tree. It is the only
// authority that mints paths for relocated data objects and the private
// directories handed to subworkers.
//
// Layout:
//
//	<root>/data/<n>                 managed data objects
//	<root>/subworkers/work/<id>     subworker private work directories
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/specialistvlad/gridworker/internal/fsutil"
)

// WorkDir allocates fresh paths inside a root directory. It is safe for
// concurrent use.
type WorkDir struct {
	root      string
	dataDir   string
	subworker string
	counter   atomic.Uint64
}

// New prepares the directory layout under root. root is made absolute so
// that every path the WorkDir hands out is absolute as well.
func New(root string) (*WorkDir, error) {
	if root == "" {
		return nil, fmt.Errorf("work dir root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work dir %q: %w", root, err)
	}
	w := &WorkDir{
		root:      abs,
		dataDir:   filepath.Join(abs, "data"),
		subworker: filepath.Join(abs, "subworkers", "work"),
	}
	for _, dir := range []string{w.dataDir, w.subworker} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return w, nil
}

// Root returns the absolute root of the tree.
func (w *WorkDir) Root() string { return w.root }

// NewPathForDataObject returns a fresh, never-before-returned path under
// <root>/data. The file itself is not created.
func (w *WorkDir) NewPathForDataObject() string {
	n := w.counter.Add(1)
	return filepath.Join(w.dataDir, strconv.FormatUint(n, 10))
}

// SubworkerDir returns the private work directory of the given subworker.
func (w *WorkDir) SubworkerDir(id int) string {
	return filepath.Join(w.subworker, strconv.Itoa(id))
}

// MakeSubworkerDir creates the private work directory of the given subworker.
func (w *WorkDir) MakeSubworkerDir(id int) (string, error) {
	dir := w.SubworkerDir(id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create subworker dir: %w", err)
	}
	return dir, nil
}

// Owns reports whether path lies strictly inside the managed data area.
func (w *WorkDir) Owns(path string) bool {
	return fsutil.IsStrictlyWithin(w.dataDir, path)
}

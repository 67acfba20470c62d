package upstream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/specialistvlad/gridworker/internal/ctxlog"
	"github.com/specialistvlad/gridworker/internal/data"
	"github.com/specialistvlad/gridworker/internal/fsutil"
	"github.com/specialistvlad/gridworker/internal/metrics"
	"github.com/specialistvlad/gridworker/internal/objecttable"
	"github.com/specialistvlad/gridworker/internal/wire"
	"github.com/specialistvlad/gridworker/internal/worker"
)

// Localize converts a subworker's result description into a worker-owned
// Data. The returned handle carries one reference owned by the caller.
func Localize(ctx context.Context, st *worker.State, subworkerDir string, desc wire.LocalData) (*data.Data, error) {
	d, err := localize(ctx, st, subworkerDir, desc)
	metrics.ObserveLocalization(storageKind(desc.Storage), resultLabel(err))
	if err != nil {
		ctxlog.FromContext(ctx).Debug("Localization failed.", "storage", storageKind(desc.Storage), "error", err)
	}
	return d, err
}

func localize(ctx context.Context, st *worker.State, subworkerDir string, desc wire.LocalData) (*data.Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if desc.Type != data.Blob {
		return nil, fmt.Errorf("%w: %s", ErrUnimplementedType, desc.TypeName())
	}

	switch s := desc.Storage.(type) {
	case wire.MemoryStorage:
		return data.New(data.Blob, data.Memory(s.Bytes))
	case wire.PathStorage:
		return localizePath(st, subworkerDir, s.Path)
	case wire.InWorkerStorage:
		d, err := st.Objects().Acquire(ctx, s.ID)
		if errors.Is(err, objecttable.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownObject, s.ID)
		}
		return d, err
	case wire.UnknownStorage:
		return nil, fmt.Errorf("%w: %s", ErrUnimplementedStorage, s.Kind)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnimplementedStorage, s)
	}
}

func localizePath(st *worker.State, subworkerDir, raw string) (*data.Data, error) {
	src, err := validateSubworkerPath(subworkerDir, raw)
	if err != nil {
		return nil, err
	}
	// The parent must not have been swapped for a symlink since validation.
	parent := filepath.Dir(src.Path())
	if current, err := filepath.EvalSymlinks(parent); err != nil || current != parent {
		return nil, fmt.Errorf("%w: %q changed during localization", ErrPathOutsideSandbox, raw)
	}
	return data.NewByFSMove(src, st.WorkDir().NewPathForDataObject())
}

// validateSubworkerPath checks a reported path against the sandbox without
// mutating anything. The returned source names the file through its
// resolved parent directory.
func validateSubworkerPath(subworkerDir, raw string) (*data.SourcePath, error) {
	if !filepath.IsAbs(raw) {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrPathOutsideSandbox, raw)
	}
	if !filepath.IsAbs(subworkerDir) {
		return nil, fmt.Errorf("subworker dir %q is not absolute", subworkerDir)
	}
	path := filepath.Clean(raw)
	if !fsutil.IsStrictlyWithin(subworkerDir, path) {
		return nil, fmt.Errorf("%w: %q is not in %q", ErrPathOutsideSandbox, raw, subworkerDir)
	}

	// Intermediate symlinks could redirect the move to a file elsewhere.
	realDir, err := filepath.EvalSymlinks(subworkerDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subworker dir: %w", err)
	}
	realParent, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", raw, err)
	}
	if realParent != realDir && !fsutil.IsStrictlyWithin(realDir, realParent) {
		return nil, fmt.Errorf("%w: %q resolves outside %q", ErrPathOutsideSandbox, raw, subworkerDir)
	}

	resolved := filepath.Join(realParent, filepath.Base(path))
	info, err := os.Lstat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", raw, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("%w: %q is a symlink", ErrPathOutsideSandbox, raw)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %q is not a regular file", ErrUnimplementedType, raw)
	}
	return data.NewSourcePath(resolved), nil
}

func storageKind(s wire.Storage) string {
	switch s.(type) {
	case wire.MemoryStorage:
		return "memory"
	case wire.PathStorage:
		return "path"
	case wire.InWorkerStorage:
		return "in_worker"
	default:
		return "unknown"
	}
}

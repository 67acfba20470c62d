package data

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
)

// ErrSourceConsumed is returned when a SourcePath is used after its file has
// already been moved away.
var ErrSourceConsumed = errors.New("source path already consumed")

// SourcePath is a file the worker is about to take ownership of. It can be
// moved exactly once; afterwards the original location is no longer valid
// storage and every further use fails with ErrSourceConsumed.
type SourcePath struct {
	path     string
	consumed atomic.Bool
}

// NewSourcePath wraps a path that has already been validated by the caller.
func NewSourcePath(path string) *SourcePath {
	return &SourcePath{path: path}
}

// Path returns the original location.
func (s *SourcePath) Path() string { return s.path }

// Consumed reports whether the file has been moved.
func (s *SourcePath) Consumed() bool { return s.consumed.Load() }

// MoveTo relocates the file to target. A rename is used when possible; across
// filesystems the file is copied and the source removed.
func (s *SourcePath) MoveTo(target string) error {
	if !s.consumed.CompareAndSwap(false, true) {
		return ErrSourceConsumed
	}
	if err := move(s.path, target); err != nil {
		s.consumed.Store(false)
		return err
	}
	return nil
}

func move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to prepare target dir: %w", err)
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	if err := copyFile(src, dst); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to copy %s across devices: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

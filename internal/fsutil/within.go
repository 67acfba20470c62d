// Package fsutil provides file system path utilities.
package fsutil

import (
	"path/filepath"
	"strings"
)

// IsStrictlyWithin reports whether path lies inside dir and is not dir
// itself. The check is lexical: both sides are cleaned, so `..` segments
// cannot climb out, but symlinks are not resolved.
func IsStrictlyWithin(dir, path string) bool {
	if dir == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	if rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

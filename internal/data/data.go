package data

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

// ErrOverReleased is returned when Release is called on a Data whose last
// reference has already been dropped.
var ErrOverReleased = errors.New("data released more times than retained")

// Data is the worker-internal handle of a data object. It is created with a
// single reference held by the caller.
type Data struct {
	typ     Type
	storage Storage
	size    int64
	refs    atomic.Int64
}

// New creates a Data with one reference. For Memory storage the size is the
// length of the slice; for ManagedPath it is read from the filesystem.
func New(typ Type, storage Storage) (*Data, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	d := &Data{typ: typ, storage: storage}
	switch s := storage.(type) {
	case Memory:
		d.size = int64(len(s))
	case ManagedPath:
		info, err := os.Stat(string(s))
		if err != nil {
			return nil, fmt.Errorf("failed to stat managed path: %w", err)
		}
		d.size = info.Size()
	}
	d.refs.Store(1)
	return d, nil
}

// NewByFSMove relocates the file behind src to target and returns a Blob
// Data owning target. src is consumed by the call.
func NewByFSMove(src *SourcePath, target string) (*Data, error) {
	if err := src.MoveTo(target); err != nil {
		return nil, err
	}
	d, err := New(Blob, ManagedPath(target))
	if err != nil {
		// The move already happened; do not leave an orphan behind.
		_ = os.Remove(target)
		return nil, err
	}
	return d, nil
}

// Type returns the data type tag.
func (d *Data) Type() Type { return d.typ }

// Storage returns where the bytes live.
func (d *Data) Storage() Storage { return d.storage }

// Size returns the number of bytes.
func (d *Data) Size() int64 { return d.size }

// Refs returns the current reference count.
func (d *Data) Refs() int64 { return d.refs.Load() }

// Retain adds a reference and returns the same handle.
func (d *Data) Retain() *Data {
	d.refs.Add(1)
	return d
}

// Release drops a reference. Dropping the last reference of a ManagedPath
// removes the file.
func (d *Data) Release() error {
	n := d.refs.Add(-1)
	switch {
	case n > 0:
		return nil
	case n < 0:
		d.refs.Add(1)
		return ErrOverReleased
	}
	if p, ok := d.storage.(ManagedPath); ok {
		if err := os.Remove(string(p)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove managed path %s: %w", p, err)
		}
	}
	return nil
}

// ReadAll returns a copy of the bytes.
func (d *Data) ReadAll() ([]byte, error) {
	switch s := d.storage.(type) {
	case Memory:
		return append([]byte(nil), s...), nil
	case ManagedPath:
		return os.ReadFile(string(s))
	default:
		return nil, fmt.Errorf("unsupported storage %T", s)
	}
}

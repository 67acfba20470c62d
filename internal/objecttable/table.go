package objecttable

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/gridworker/internal/data"
	"github.com/specialistvlad/gridworker/internal/dataobj"
)

var (
	// ErrNotFound is returned when no object is registered under an id.
	ErrNotFound = errors.New("data object not found")
	// ErrExists is returned when an id is already bound. Ids are never
	// reassigned.
	ErrExists = errors.New("data object already exists")
)

// Table maps data object ids to their shared Data.
type Table struct {
	mu      sync.RWMutex
	objects map[dataobj.ID]*data.Data
}

// New creates an empty table.
func New() *Table {
	return &Table{objects: make(map[dataobj.ID]*data.Data)}
}

// Insert binds id to d. The table takes over the caller's reference.
func (t *Table) Insert(ctx context.Context, id dataobj.ID, d *data.Data) error {
	if d == nil {
		return fmt.Errorf("cannot insert nil data under %s", id)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.objects[id]; exists {
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	t.objects[id] = d
	return nil
}

// Lookup returns the table's own handle without adding a reference.
func (t *Table) Lookup(ctx context.Context, id dataobj.ID) (*data.Data, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d, ok := t.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// Acquire returns the handle bound to id with one extra reference that the
// caller must release.
func (t *Table) Acquire(ctx context.Context, id dataobj.ID) (*data.Data, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d, ok := t.objects[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d.Retain(), nil
}

// Remove unbinds id and releases the table's reference.
func (t *Table) Remove(ctx context.Context, id dataobj.ID) error {
	t.mu.Lock()
	d, ok := t.objects[id]
	delete(t.objects, id)
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d.Release()
}

// Len returns the number of objects in the table.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.objects)
}

package subworker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrAlreadyRegistered is returned when an id already has a live entry.
	ErrAlreadyRegistered = errors.New("subworker id already registered")
	// ErrNotRegistered is returned when an id has no entry.
	ErrNotRegistered = errors.New("subworker not registered")
)

// Registry holds at most one Entry per subworker id.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int]*Entry)}
}

// Insert adds a new entry. An id that is already present is rejected and the
// existing entry is left untouched.
func (r *Registry) Insert(entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cannot insert nil entry")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[entry.ID]; exists {
		return fmt.Errorf("%w: %d", ErrAlreadyRegistered, entry.ID)
	}
	r.entries[entry.ID] = entry
	return nil
}

// Get returns the entry for id.
func (r *Registry) Get(id int) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Remove deletes the entry for id, but only if it is still bound to the
// given control handle. This keeps a late disconnect of an old connection
// from removing a newer registration under the same id.
func (r *Registry) Remove(id int, control ControlHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || (control != nil && e.Control != control) {
		return fmt.Errorf("%w: %d", ErrNotRegistered, id)
	}
	delete(r.entries, id)
	return nil
}

// Len returns the number of registered subworkers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

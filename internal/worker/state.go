// Package worker defines the explicitly-owned shared state of a worker
// process: the subworker registry, the object table and the work directory.
//
// There is exactly one State per worker. It is constructed by the App and
// handed to every upstream handler; nothing in the process reaches it through
// a global.
package worker

import (
	"fmt"

	"github.com/specialistvlad/gridworker/internal/objecttable"
	"github.com/specialistvlad/gridworker/internal/subworker"
	"github.com/specialistvlad/gridworker/internal/workdir"
)

// State is shared by all handlers. Each collection serializes its own
// writers, so State itself needs no lock.
type State struct {
	subworkers *subworker.Registry
	objects    *objecttable.Table
	workDir    *workdir.WorkDir
}

// NewState creates a State rooted at the given work directory.
func NewState(workDir *workdir.WorkDir) (*State, error) {
	if workDir == nil {
		return nil, fmt.Errorf("work dir is required")
	}
	return &State{
		subworkers: subworker.NewRegistry(),
		objects:    objecttable.New(),
		workDir:    workDir,
	}, nil
}

// Subworkers returns the subworker registry.
func (s *State) Subworkers() *subworker.Registry { return s.subworkers }

// Objects returns the object table.
func (s *State) Objects() *objecttable.Table { return s.objects }

// WorkDir returns the work directory allocator.
func (s *State) WorkDir() *workdir.WorkDir { return s.workDir }

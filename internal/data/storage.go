package data

// Storage describes where the bytes of a Data physically live. The set of
// variants is closed: Memory and ManagedPath.
type Storage interface {
	isStorage()
}

// Memory holds the bytes inline, owned by the Data.
type Memory []byte

// ManagedPath is a file inside the worker's own work directory. Its lifetime
// is bound to the Data that holds it.
type ManagedPath string

func (Memory) isStorage()      {}
func (ManagedPath) isStorage() {}

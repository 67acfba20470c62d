// internal/dataobj/types.go
package dataobj

// ID names a data object for the lifetime of the worker. It is never
// reassigned to a different object.
type ID struct {
	SessionID int32 `json:"session_id"`
	ID        int32 `json:"id"`
}

// New creates an ID from its two components.
func New(sessionID, id int32) ID {
	return ID{SessionID: sessionID, ID: id}
}

// IsZero reports whether the ID is the zero value.
func (i ID) IsZero() bool {
	return i == ID{}
}

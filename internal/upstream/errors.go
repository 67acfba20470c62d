package upstream

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/gridworker/internal/subworker"
)

var (
	// ErrProtocolMismatch marks a registration with the wrong protocol version.
	ErrProtocolMismatch = errors.New("invalid subworker protocol")
	// ErrPathOutsideSandbox marks a reported path that is not absolute or not
	// inside the subworker's work directory.
	ErrPathOutsideSandbox = errors.New("path of data object is outside the subworker dir")
	// ErrUnknownObject marks a reference to an object the worker does not hold.
	ErrUnknownObject = errors.New("unknown data object")
	// ErrUnimplementedType marks a data type localization does not handle yet.
	ErrUnimplementedType = errors.New("data type not implemented")
	// ErrUnimplementedStorage marks a wire storage variant that is not handled.
	ErrUnimplementedStorage = errors.New("storage variant not implemented")
	// ErrConnectionLost marks the loss of a registered subworker's connection.
	ErrConnectionLost = errors.New("lost connection to subworker")
	// ErrAlreadyRegistered marks a second Register on the same connection.
	ErrAlreadyRegistered = errors.New("connection already registered")
	// ErrNotRegistered marks a request on a connection that has not registered.
	ErrNotRegistered = errors.New("connection not registered")
)

// ProtocolMismatchError reports the version this worker expects.
type ProtocolMismatchError struct {
	Expected int
	Got      int
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("invalid subworker protocol; expected = %d, got = %d", e.Expected, e.Got)
}

// Is makes errors.Is(err, ErrProtocolMismatch) hold.
func (e *ProtocolMismatchError) Is(target error) bool {
	return target == ErrProtocolMismatch
}

// resultLabel maps an outcome to its metrics label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrProtocolMismatch):
		return "protocol_mismatch"
	case errors.Is(err, ErrPathOutsideSandbox):
		return "path_outside_sandbox"
	case errors.Is(err, ErrUnknownObject):
		return "unknown_object"
	case errors.Is(err, ErrUnimplementedType):
		return "unimplemented_type"
	case errors.Is(err, ErrUnimplementedStorage):
		return "unimplemented_storage"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, subworker.ErrAlreadyRegistered):
		return "duplicate_id"
	default:
		return "error"
	}
}

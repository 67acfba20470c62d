package data

import (
	"fmt"
	"strings"
)

// Type is a closed tag describing what the bytes of a data object represent.
// The zero value means no type was given and is never localized.
type Type int

const (
	// Blob is an opaque sequence of bytes.
	Blob Type = iota + 1
	// Directory is a directory tree. It is recognised on the wire but not yet
	// localized.
	Directory
)

// String returns the wire name of the type.
func (t Type) String() string {
	switch t {
	case 0:
		return "unset"
	case Blob:
		return "blob"
	case Directory:
		return "directory"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// ParseType converts a wire name into a Type.
func ParseType(raw string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "blob":
		return Blob, nil
	case "directory":
		return Directory, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", raw)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if t != Blob && t != Directory {
		return nil, fmt.Errorf("cannot marshal unknown data type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

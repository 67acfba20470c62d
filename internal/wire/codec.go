package wire

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a message into the JSON text sent as an event argument.
func Encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return string(raw), nil
}

// Decode parses an event argument into v.
func Decode(arg any, v any) error {
	var raw []byte
	switch a := arg.(type) {
	case nil:
		return fmt.Errorf("missing payload")
	case string:
		raw = []byte(a)
	case []byte:
		raw = a
	default:
		// Already decoded by the transport into maps/slices.
		encoded, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to re-encode payload %T: %w", a, err)
		}
		raw = encoded
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return nil
}

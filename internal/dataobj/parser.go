// internal/dataobj/parser.go
package dataobj

import (
	"fmt"
	"regexp"
	"strconv"
)

var idRegex = regexp.MustCompile(`^(-?\d+)/(-?\d+)$`)

// Parse creates an ID from its canonical `<session>/<id>` representation.
func Parse(raw string) (ID, error) {
	if raw == "" {
		return ID{}, fmt.Errorf("identifier cannot be empty")
	}

	matches := idRegex.FindStringSubmatch(raw)
	if matches == nil {
		return ID{}, fmt.Errorf("invalid data object identifier: %q", raw)
	}

	session, err := strconv.ParseInt(matches[1], 10, 32)
	if err != nil {
		return ID{}, fmt.Errorf("invalid session id in %q: %w", raw, err)
	}
	id, err := strconv.ParseInt(matches[2], 10, 32)
	if err != nil {
		return ID{}, fmt.Errorf("invalid object id in %q: %w", raw, err)
	}

	return ID{SessionID: int32(session), ID: int32(id)}, nil
}

// String serializes the ID into its canonical representation.
func (i ID) String() string {
	return fmt.Sprintf("%d/%d", i.SessionID, i.ID)
}

package upstream

import (
	"fmt"
	"strings"
)

// DisconnectPolicy decides what losing a registered subworker means for the
// worker process.
type DisconnectPolicy string

const (
	// PolicyAbort treats the loss as unrecoverable and aborts the process.
	PolicyAbort DisconnectPolicy = "abort"
	// PolicyUnregister drops the registry entry and keeps the worker running.
	PolicyUnregister DisconnectPolicy = "unregister"
)

// ParseDisconnectPolicy validates a policy name. The empty string selects
// PolicyAbort.
func ParseDisconnectPolicy(raw string) (DisconnectPolicy, error) {
	switch DisconnectPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicyUnregister:
		return PolicyUnregister, nil
	default:
		return "", fmt.Errorf("invalid disconnect policy %q: must be 'abort' or 'unregister'", raw)
	}
}

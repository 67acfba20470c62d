package wire

import (
	"encoding/json"

	"github.com/specialistvlad/gridworker/internal/dataobj"
)

// RunTask asks a registered subworker to perform one computation.
type RunTask struct {
	RequestID uint64          `json:"request_id"`
	Method    string          `json:"method"`
	Config    json.RawMessage `json:"config,omitempty"`
	// OutputIDs, when set, names the object table ids the localized outputs
	// are bound to. It must match the number of outputs.
	OutputIDs []dataobj.ID `json:"output_ids,omitempty"`
}

// TaskFinished reports the outcome of a RunTask. Outputs are localized by
// the worker on receipt.
type TaskFinished struct {
	RequestID uint64      `json:"request_id"`
	Outputs   []LocalData `json:"outputs,omitempty"`
	Error     string      `json:"error,omitempty"`
}

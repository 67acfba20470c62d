// Package wire defines the messages exchanged between the worker and its
// subworkers over the upstream control channel, and the JSON codec used to
// carry them inside socket.io events.
//
// Every payload travels as a single JSON text argument. Decode accepts the
// argument in any of the shapes a socket.io peer may deliver it (string,
// raw bytes, or an already-decoded JSON value).
package wire

// Event names on the upstream channel.
const (
	EventRegister       = "register"
	EventRegisterResult = "register_result"
	EventRunTask        = "run_task"
	EventTaskFinished   = "task_finished"
	EventRejected       = "rejected"
)

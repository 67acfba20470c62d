// Package transport serves the upstream control channel over socket.io.
//
// Each socket connection is bound to one upstream.Handler. The connection
// itself doubles as the subworker's ControlHandle: RunTask emits a run_task
// event and blocks until the matching task_finished arrives, at which point
// the reported outputs are localized into worker-owned data.
package transport

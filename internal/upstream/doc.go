// Package upstream implements the worker's side of the subworker control
// channel: the registration handshake and the localization of results a
// subworker reports.
//
// A Handler is bound to exactly one connection. It starts unregistered; the
// only request it accepts in that state is Register, which succeeds only for
// the exact ProtocolVersion this worker was built with. Once registered, the
// connection's subworker entry lives in the shared registry until the
// connection goes away, at which point the configured DisconnectPolicy
// decides whether the process aborts or the entry is dropped.
//
// Localize turns a wire.LocalData into a worker-owned data.Data. Paths
// reported by a subworker are untrusted: they must be absolute and lie inside
// the subworker's private directory, and they are validated before any
// filesystem mutation happens. Accepted files are moved, never copied, into
// a fresh path minted by the worker's WorkDir.
package upstream

// Package app contains the worker process: it resolves configuration, owns
// the worker State, serves the upstream transport and the optional health
// check server, and stops them on shutdown. It is decoupled from any
// specific entrypoint.
package app

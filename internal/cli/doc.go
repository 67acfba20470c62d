// Package cli is responsible for parsing command-line arguments, reading the
// environment, validating user input, and handling process-level concerns
// like exit codes. It translates them into the application's configuration.
package cli

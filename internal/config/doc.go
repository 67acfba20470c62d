// Package config defines the format-agnostic configuration model of a
// worker process and the Loader interface implemented by concrete formats.
//
// A Model is assembled in layers: Default, then a configuration file, then
// environment, then explicitly set flags. Each layer is a partial Model whose
// zero-valued fields mean "not set"; Merge overlays one layer onto another.
package config

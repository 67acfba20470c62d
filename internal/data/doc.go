// Package data defines the worker-internal representation of a data object:
// what the bytes are (Type), where they live (Storage), and the shared,
// reference-counted handle (Data) that every consumer holds.
//
// A Data value is immutable once constructed. Sharing it means retaining the
// same pointer; the storage is never copied or moved again after
// construction. When the last holder releases it, managed files are removed
// from the worker's work directory.
package data

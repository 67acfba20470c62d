// Package objecttable provides the worker's table of data objects, mapping a
// dataobj.ID to the shared data.Data it names.
//
// # Ownership
//
// The table holds one reference of every Data it contains. Lookups that hand
// a Data to another holder go through Acquire, which retains the handle under
// the table lock so that a concurrent Remove can never drop the last
// reference in between.
//
// # Concurrency Model
//
// A single sync.RWMutex guards the map: inserts and removals are serialized,
// lookups run in parallel.
package objecttable

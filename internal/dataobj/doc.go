// internal/dataobj/doc.go

/*
Package dataobj provides the structured identifier of a data object owned by
the worker.

An ID is a pair of a session id and an object id within that session. Its
canonical text form is `<session>/<id>`, e.g. `3/17`; its JSON form is
`{"session_id":3,"id":17}`, which is how subworkers refer to objects the
worker already holds.

IDs are plain comparable values and can be used directly as map keys.
*/
package dataobj

// Package badger provides an embedded key-value implementation of the job,
// chunk and artifact stores on top of badgerhold.
//
// Records are stored as flat gob-encoded structs; generation jobs carry
// their full JSON payload alongside indexed query fields. Select it with
// storage.backend = "badger".
package badger

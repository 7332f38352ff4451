// Package entitystore implements interfaces.EntityStore, the durable keyed
// storage behind the registry.
//
// Records are kept in insertion order together with a user index mapping
// admin, reserve admin, owner and notification party addresses to the
// entities they appear in. Deleted records are tombstoned rather than erased:
// Get no longer returns them, while ListAll and the index still carry them.
//
// Update transactions run on a private copy of the store. When the store has
// a storage backend, the copy is saved as a full snapshot before it replaces
// the live state, so a failed transaction or a failed save leaves the store
// unchanged. The user index is not persisted and is rebuilt on load.
package entitystore

// Package interfaces defines the core types and contracts of the business
// entity registry, separating interface definitions from implementations.
//
// # Data Model
//
// BusinessEntity is the registry record. It is keyed by an address assigned at
// registration and carries the agent, the admin, reserve admin, owner and
// notification party lists, documents, lifecycle Status and timestamps.
//
// # Registry Interfaces
//
// EntityStore: Durable keyed storage with View and Update transactions. An
// Update that fails leaves the store unchanged.
//
// RegistryLogic: Stateless registry operations working on the EntityStore found
// in a CallContext, so the logic can be replaced without touching stored data.
//
// EntityRegistry: The operation surface exposed to callers, implemented by the
// registry entry point and by the HTTP client.
//
// # Storage Interfaces
//
// StorageBackend: Persists Snapshot images of an entity store across backend
// types (file, SQLite, Postgres, S3, IPFS, Vault).
//
// StorageBackendFactory: Creates storage backends from URI strings and combines
// several of them into one redundant backend.
//
// # Errors
//
// Operations fail with ErrNotFound, ErrInvalidInput, ErrForbidden or
// ErrInvalidTransition, wrapped with context. ValidationError matches
// ErrInvalidInput through errors.Is.
package interfaces

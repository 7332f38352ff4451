// Package logic implements the business entity registry operations.
//
// Logic is stateless: every operation receives an interfaces.CallContext
// carrying the entry point's EntityStore, the entry point address used to
// derive new entity addresses, the caller and the current time. Replacing the
// Logic behind an entry point therefore needs no data migration.
//
// Entities move through three statuses:
//
//	Live --ChangeBEStatus--> Deregistered --DeleteBE--> Deleted
//
// DeleteBE also accepts live entities unless WithRequireDeregistration is set.
// Deleted entities are tombstoned in the store and disappear from every query.
package logic

// Package registry provides the entry point of the business entity registry.
//
// A Registry owns the entity store and forwards each operation to an
// installed interfaces.RegistryLogic. The logic can be replaced at runtime
// with Upgrade; stored entities and the address derivation nonce survive the
// swap because they live in the store, not in the logic.
//
// Every call is stamped with the registry clock and the caller address,
// timed into the operation metrics and logged. MockRegistry is a testify
// mock of interfaces.EntityRegistry for transport tests.
package registry

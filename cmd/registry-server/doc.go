// Package main (cmd/registry-server) runs the business entity registry.
//
// The server builds the entity store from the configured snapshot backends,
// installs the registry logic behind a registry entry point and serves the
// HTTP API. At startup it logs the registry address and the logic version it
// runs, which is the address clients and entity derivation are bound to.
//
// Configuration comes from flags, their environment variables, and an
// optional .env file (path overridable with REGISTRY_ENV_FILE).
//
// Example usage:
//
//	registry-server \
//	  --listen-addr 0.0.0.0:8080 \
//	  --storage file:///var/lib/be-registry \
//	  --storage s3://registry-backups/prod?region=eu-west-1 \
//	  --require-deregistration
package main

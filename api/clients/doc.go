/*
Package clients provides a client library for the registry HTTP API.

RegistryClient implements interfaces.EntityRegistry, so code written against
an in-process registry.Registry works unchanged against a remote server.
Server failures come back as errors matching the interfaces sentinels
(ErrNotFound, ErrInvalidInput, ErrForbidden, ErrInvalidTransition).

LoadEntityPayload reads entity payloads for the command line client from JSON
or YAML files.
*/
package clients

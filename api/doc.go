/*
Package api holds the wire types shared by the registry HTTP server and its
clients.

Routes (all JSON):

	POST   /api/v1/entities                   register an entity
	GET    /api/v1/entities                   list entities that are not deleted
	GET    /api/v1/entities/{address}         fetch one entity
	PUT    /api/v1/entities/{address}         replace an entity payload
	POST   /api/v1/entities/{address}/status  deregister an entity
	DELETE /api/v1/entities/{address}         delete an entity
	GET    /api/v1/users/{address}/entities   entities of a user, split by expiry
	GET    /api/v1/logic                      registry address and logic version

The caller is passed as a hex address in the X-Registry-Caller header.
Failures are returned as ErrorResponse with status 400, 403, 404 or 409.

The clients subpackage implements interfaces.EntityRegistry over this API.
*/
package api

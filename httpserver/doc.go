/*
Package httpserver implements the HTTP server of the business entity registry.

Handler exposes an interfaces.EntityRegistry as the JSON API described in
package api. Server wires the handler into a chi router together with the
operational endpoints and runs it next to an optional Prometheus listener.

# Endpoints

Registry API (see package api for the route list):

  - entity registration, listing, lookup, update, status change and deletion
  - per-user lookup split into expired and not expired entities
  - logic version report

Operational:

  - GET /livez - liveness probe
  - GET /readyz - readiness probe, 503 while draining
  - GET /drain - mark the server not ready
  - GET /undrain - mark the server ready again
  - /debug/pprof/* when pprof is enabled

# Errors

Registry errors are mapped with errors.Is:

  - interfaces.ErrNotFound -> 404
  - interfaces.ErrInvalidInput -> 400
  - interfaces.ErrForbidden -> 403
  - interfaces.ErrInvalidTransition -> 409

Malformed callers, addresses and bodies are rejected with 400 before the
registry is called. Every error body has the form {"error": "..."}.

# Usage

	handler := httpserver.NewHandler(reg, logger)
	srv, err := httpserver.New(cfg, handler, m)
	if err != nil {
		return err
	}
	srv.RunInBackground()
	defer srv.Shutdown()
*/
package httpserver

package api

import (
	"log/slog"
	"time"
)

// DefaultMaxRequestBodyBytes bounds entity payloads accepted by the server.
const DefaultMaxRequestBodyBytes = 1 << 20

// HTTPServerConfig configures the registry HTTP server.
type HTTPServerConfig struct {
	// ListenAddr is the address the registry API listens on.
	ListenAddr string

	// MetricsAddr is the address of the Prometheus listener. Empty disables it.
	MetricsAddr string

	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long the server reports not ready before shutting
	// down, so load balancers stop routing to it.
	DrainDuration time.Duration

	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration

	// MaxRequestBodyBytes limits request bodies. Zero means
	// DefaultMaxRequestBodyBytes.
	MaxRequestBodyBytes int64
}

// Package common holds process-wide helpers shared by the registry binaries.
package common

var (
	// Version is set at build time with -ldflags "-X github.com/ruteri/be-registry/common.Version=..."
	Version = "dev"

	PackageName = "github.com/ruteri/be-registry"
)

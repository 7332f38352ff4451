package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/be-registry/interfaces"
)

// StorageBackendFactory creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
type StorageBackendFactory struct {
	log *slog.Logger
}

// NewStorageBackendFactory creates a new factory instance that can create storage backends.
func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	return &StorageBackendFactory{
		log: logger,
	}
}

// StorageBackendFor creates a storage backend from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:// - JSON snapshot in a local directory
//   - sqlite:// - Local SQLite database
//   - postgres:// - Postgres database, the URI is used as the DSN
//   - s3:// - Amazon S3 or compatible object storage
//   - vault:// - HashiCorp Vault KV v2 secret
//   - ipfs:// - IPFS snapshot archive
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (sf *StorageBackendFactory) StorageBackendFor(ctx context.Context, location interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	u, err := url.Parse(location.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return sf.createFileBackend(u)
	case "sqlite":
		return sf.createSQLiteBackend(ctx, u)
	case "postgres", "postgresql":
		sf.log.Debug("Creating postgres backend", slog.String("uri", u.Redacted()))
		return NewPostgresBackend(ctx, location.Raw, sf.log)
	case "s3":
		return sf.createS3Backend(u)
	case "vault":
		return sf.createVaultBackend(u)
	case "ipfs":
		return sf.createIPFSBackend(u)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme: %s", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// CreateMultiBackend creates a multi-storage backend from a list of location URIs.
// Snapshots are saved to every available backend and loaded from the first one that has one.
// Returns an error if no valid backends could be created from the provided URIs.
func (sf *StorageBackendFactory) CreateMultiBackend(ctx context.Context, locations []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locations))

	for _, location := range locations {
		backend, err := sf.StorageBackendFor(ctx, location)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("locationURI", redactLocation(location.Raw)))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

// createFileBackend creates a file system storage backend.
// URI format: file:///absolute/path/ or file://./relative/path/
func (sf *StorageBackendFactory) createFileBackend(u *url.URL) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating file backend", slog.String("uri", u.String()))

	path := localPath(u)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI: %s", interfaces.ErrInvalidLocationURI, u.String())
	}

	return NewFileBackend(path, sf.log)
}

// createSQLiteBackend creates a SQLite storage backend.
// URI format: sqlite:///absolute/path/registry.db or sqlite://./registry.db
func (sf *StorageBackendFactory) createSQLiteBackend(ctx context.Context, u *url.URL) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating sqlite backend", slog.String("uri", u.String()))

	path := localPath(u)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in sqlite URI: %s", interfaces.ErrInvalidLocationURI, u.String())
	}

	return NewSQLiteBackend(ctx, path, sf.log)
}

// createS3Backend creates an S3 or S3-compatible storage backend.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/path/?region=us-west-2&endpoint=custom.s3.com
func (sf *StorageBackendFactory) createS3Backend(u *url.URL) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating S3 backend", slog.String("uri", u.Redacted()))

	bucketName := u.Host
	if bucketName == "" {
		return nil, fmt.Errorf("%w: missing bucket in S3 URI", interfaces.ErrInvalidLocationURI)
	}

	query := u.Query()
	region := query.Get("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	return NewS3Backend(bucketName, strings.TrimPrefix(u.Path, "/"), region, query.Get("endpoint"), accessKey, secretKey, sf.log)
}

// createVaultBackend creates a Vault KV v2 storage backend.
// URI format: vault://host:8200/mount/path?token=...&scheme=https
// The first path segment is the mount, the rest is the secret path.
func (sf *StorageBackendFactory) createVaultBackend(u *url.URL) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating Vault backend", slog.String("host", u.Host), slog.String("path", u.Path))

	query := u.Query()
	scheme := query.Get("scheme")
	if scheme == "" {
		scheme = "https"
	}

	segments := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return nil, fmt.Errorf("%w: vault URI must be vault://host:port/mount/path", interfaces.ErrInvalidLocationURI)
	}

	address := fmt.Sprintf("%s://%s", scheme, u.Host)
	return NewVaultBackend(address, segments[0], segments[1], query.Get("token"), sf.log)
}

// createIPFSBackend creates an IPFS archive backend.
// URI format: ipfs://host:port/?cid=<cid>&timeout=30s
func (sf *StorageBackendFactory) createIPFSBackend(u *url.URL) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating IPFS backend", slog.String("uri", u.String()))

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "5001" // Default IPFS API port
	}

	query := u.Query()
	timeout := 30 * time.Second
	if raw := query.Get("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", interfaces.ErrInvalidLocationURI, raw)
		}
		timeout = parsed
	}

	return NewIPFSBackend(host, port, query.Get("cid"), timeout, sf.log)
}

// localPath extracts a filesystem path from file:// and sqlite:// URIs,
// treating a non-empty host as the first path segment of a relative path.
func localPath(u *url.URL) string {
	if u.Host == "" {
		return u.Path
	}
	return u.Host + "/" + strings.TrimPrefix(u.Path, "/")
}

func redactLocation(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}

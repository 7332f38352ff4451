package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Snapshot is the persisted image of an entity store: the ordered record
// table and the address nonce. The user index is not persisted and is
// rebuilt when a snapshot is loaded.
//
// Generation increases by one with every committed change, so of two
// snapshots of the same store the one with the higher generation is newer.
type Snapshot struct {
	Generation uint64          `json:"generation"`
	Nonce      uint64          `json:"nonce"`
	Entities   []SnapshotEntry `json:"entities"`
}

// SnapshotEntry is a single row of the persisted record table.
type SnapshotEntry struct {
	Address    common.Address `json:"address"`
	Tombstoned bool           `json:"tombstoned"`
	Entity     BusinessEntity `json:"entity"`
}

// Digest returns the Keccak-256 hash of the snapshot's JSON encoding.
func (s *Snapshot) Digest() (common.Hash, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return crypto.Keccak256Hash(data), nil
}

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %w", ErrInvalidLocationURI, err)
	}

	scheme := parsed.Scheme
	switch scheme {
	case "file", "sqlite", "postgres", "postgresql", "s3", "ipfs", "vault":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrSnapshotNotFound is returned when a backend holds no snapshot yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackend persists entity store snapshots.
type StorageBackend interface {
	// Load returns the most recently saved snapshot.
	// Returns ErrSnapshotNotFound if nothing was saved yet.
	Load(ctx context.Context) (*Snapshot, error)

	// Save replaces the stored snapshot.
	Save(ctx context.Context, snapshot *Snapshot) error

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// StorageBackendFactory creates storage backends.
type StorageBackendFactory interface {
	// StorageBackendFor creates backend from URI.
	// Supports file://, sqlite://, postgres://, s3://, ipfs://, vault://
	StorageBackendFor(ctx context.Context, location StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend creates aggregated storage backend.
	CreateMultiBackend(ctx context.Context, locations []StorageBackendLocation) (StorageBackend, error)
}

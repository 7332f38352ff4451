package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/be-registry/interfaces"
)

// IPFSBackend archives snapshots on an IPFS node. IPFS content is immutable,
// so every Save produces a new CID; Load reads the most recent CID this
// backend saved, or the CID it was configured to restore from.
type IPFSBackend struct {
	shell *shell.Shell
	host  string
	port  string
	log   *slog.Logger

	mu      sync.Mutex
	lastCID string
}

// NewIPFSBackend creates a new IPFS storage backend connected to the specified
// host and port. restoreCID may be empty when there is nothing to restore.
func NewIPFSBackend(host, port, restoreCID string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)

	sh := shell.NewShell(apiURL)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}

	return &IPFSBackend{
		shell:   sh,
		host:    host,
		port:    port,
		log:     log,
		lastCID: restoreCID,
	}, nil
}

// Load fetches the current snapshot CID.
// Returns ErrSnapshotNotFound if no CID is known and ErrBackendUnavailable
// if the IPFS node is not accessible.
func (b *IPFSBackend) Load(ctx context.Context) (*interfaces.Snapshot, error) {
	start := time.Now()

	cid := b.CurrentCID()
	if cid == "" {
		return nil, interfaces.ErrSnapshotNotFound
	}

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port))
		return nil, interfaces.ErrBackendUnavailable
	}

	reader, err := b.shell.Cat("/ipfs/" + cid)
	if err != nil {
		b.log.Error("Failed to fetch snapshot from IPFS",
			slog.String("cid", cid),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to fetch snapshot from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot from IPFS: %w", err)
	}

	snapshot, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}

	b.log.Debug("Loaded snapshot from IPFS",
		slog.String("cid", cid),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return snapshot, nil
}

// Save adds the snapshot to IPFS and makes its CID the current one.
// Returns ErrBackendUnavailable if the IPFS node is not accessible.
func (b *IPFSBackend) Save(ctx context.Context, snapshot *interfaces.Snapshot) error {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	if !b.shell.IsUp() {
		return interfaces.ErrBackendUnavailable
	}

	digest, err := snapshot.Digest()
	if err != nil {
		return err
	}

	cid, err := b.shell.Add(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to add snapshot to IPFS: %w", err)
	}

	b.mu.Lock()
	b.lastCID = cid
	b.mu.Unlock()

	// Operators restart from this CID with ipfs://host:port/?cid=<cid>
	b.log.Info("Archived snapshot in IPFS",
		slog.String("cid", cid),
		slog.Uint64("generation", snapshot.Generation),
		slog.String("digest", digest.Hex()),
		slog.Int("entities", len(snapshot.Entities)))

	return nil
}

// CurrentCID returns the CID of the snapshot Load would read.
func (b *IPFSBackend) CurrentCID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastCID
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	uri := fmt.Sprintf("ipfs://%s:%s/", b.host, b.port)
	if cid := b.CurrentCID(); cid != "" {
		uri += "?cid=" + cid
	}
	return uri
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/be-registry/interfaces"
)

const snapshotFileName = "snapshot.json"

// FileBackend implements a storage backend using the local file system.
// The snapshot is kept as a single JSON file inside the base directory.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a new file storage backend using the specified base directory.
// The directory is created if it doesn't exist.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Load reads the snapshot file.
// Returns ErrSnapshotNotFound if the file doesn't exist.
func (b *FileBackend) Load(ctx context.Context) (*interfaces.Snapshot, error) {
	data, err := os.ReadFile(b.snapshotPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, interfaces.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	snapshot, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}

	b.log.Debug("Loaded snapshot from file",
		slog.String("path", b.snapshotPath()),
		slog.Int("entities", len(snapshot.Entities)))

	return snapshot, nil
}

// Save writes the snapshot to a temporary file and renames it over the
// previous one, so readers never observe a partially written snapshot.
func (b *FileBackend) Save(ctx context.Context, snapshot *interfaces.Snapshot) error {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.baseDir, snapshotFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, b.snapshotPath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	b.log.Debug("Stored snapshot in file",
		slog.String("path", b.snapshotPath()),
		slog.Int("size", len(data)))

	return nil
}

// Available checks if the file backend is accessible by verifying the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

func (b *FileBackend) snapshotPath() string {
	return filepath.Join(b.baseDir, snapshotFileName)
}

func encodeSnapshot(snapshot *interfaces.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*interfaces.Snapshot, error) {
	var snapshot interfaces.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ruteri/be-registry/interfaces"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteBackend stores snapshots in a local SQLite database.
type SQLiteBackend struct {
	store *sqlSnapshotStore
	path  string
}

// NewSQLiteBackend opens (creating if needed) the database at path and
// ensures the snapshot tables exist.
func NewSQLiteBackend(ctx context.Context, path string, log *slog.Logger) (*SQLiteBackend, error) {
	if path == "" {
		path = "be-registry.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	store := &sqlSnapshotStore{db: db, placeholders: questionPlaceholders, log: log}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteBackend{store: store, path: path}, nil
}

// Load reads the snapshot tables.
func (b *SQLiteBackend) Load(ctx context.Context) (*interfaces.Snapshot, error) {
	return b.store.load(ctx)
}

// Save rewrites the snapshot tables in a single transaction.
func (b *SQLiteBackend) Save(ctx context.Context, snapshot *interfaces.Snapshot) error {
	return b.store.save(ctx, snapshot)
}

// Available pings the database.
func (b *SQLiteBackend) Available(ctx context.Context) bool {
	return b.store.available(ctx)
}

// Name returns a unique identifier for this storage backend.
func (b *SQLiteBackend) Name() string {
	return fmt.Sprintf("sqlite-%s", filepath.Base(b.path))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *SQLiteBackend) LocationURI() string {
	return fmt.Sprintf("sqlite://%s", b.path)
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.store.db.Close()
}

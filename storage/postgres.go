package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/ruteri/be-registry/interfaces"
)

const postgresDriver = "pgx"

var sqlOpen = sql.Open

// PostgresBackend stores snapshots in a Postgres database.
type PostgresBackend struct {
	store *sqlSnapshotStore
	uri   string
}

// NewPostgresBackend connects to the database at dsn and ensures the
// snapshot tables exist.
func NewPostgresBackend(ctx context.Context, dsn string, log *slog.Logger) (*PostgresBackend, error) {
	db, err := sqlOpen(postgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", interfaces.ErrBackendUnavailable, err)
	}

	store := &sqlSnapshotStore{db: db, placeholders: dollarPlaceholders, log: log}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &PostgresBackend{store: store, uri: redactDSN(dsn)}, nil
}

// Load reads the snapshot tables.
func (b *PostgresBackend) Load(ctx context.Context) (*interfaces.Snapshot, error) {
	return b.store.load(ctx)
}

// Save rewrites the snapshot tables in a single transaction.
func (b *PostgresBackend) Save(ctx context.Context, snapshot *interfaces.Snapshot) error {
	return b.store.save(ctx, snapshot)
}

// Available pings the database.
func (b *PostgresBackend) Available(ctx context.Context) bool {
	return b.store.available(ctx)
}

// Name returns a unique identifier for this storage backend.
func (b *PostgresBackend) Name() string {
	u, err := url.Parse(b.uri)
	if err != nil {
		return "postgres"
	}
	return fmt.Sprintf("postgres-%s", u.Host)
}

// LocationURI returns the URI that identifies this storage backend, without the password.
func (b *PostgresBackend) LocationURI() string {
	return b.uri
}

// Close closes the database.
func (b *PostgresBackend) Close() error {
	return b.store.db.Close()
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "postgres://"
	}
	return u.Redacted()
}

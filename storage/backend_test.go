package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/be-registry/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func richSnapshot() *interfaces.Snapshot {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &interfaces.Snapshot{
		Generation: 12,
		Nonce:      7,
		Entities: []interfaces.SnapshotEntry{
			{
				Address: common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
				Entity: interfaces.BusinessEntity{
					ID:     "acme",
					Status: interfaces.StatusLive,
					Agent: interfaces.Agent{
						AgentName:   "Registered Agents Ltd",
						AgentAccess: []string{"READ"},
					},
					Owners: []interfaces.Owner{
						{OwnerAddress: common.HexToAddress("0xaa"), OwnerShares: 60, OwnerAccess: []string{"VOTE"}},
					},
					ExpiresAt:    ts.Add(24 * time.Hour),
					CreatedAt:    ts,
					UpdatedAt:    ts,
					LastActionAt: ts,
				},
			},
			{
				Address:    common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"),
				Tombstoned: true,
				Entity: interfaces.BusinessEntity{
					ID:        "gone",
					Status:    interfaces.StatusDeleted,
					CreatedAt: ts,
				},
			},
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := NewFileBackend(dir, testLogger())
	require.NoError(t, err)
	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "file://"+dir, backend.LocationURI())

	_, err = backend.Load(ctx)
	assert.ErrorIs(t, err, interfaces.ErrSnapshotNotFound)

	snapshot := richSnapshot()
	require.NoError(t, backend.Save(ctx, snapshot))

	loaded, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot, loaded)

	// Second save replaces the first and leaves no temporary files behind
	snapshot.Nonce = 8
	require.NoError(t, backend.Save(ctx, snapshot))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, snapshotFileName, entries[0].Name())

	loaded, err = backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), loaded.Nonce)
}

func TestFileBackend_CorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFileName), []byte("{not json"), 0644))

	backend, err := NewFileBackend(dir, testLogger())
	require.NoError(t, err)

	_, err = backend.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, interfaces.ErrSnapshotNotFound)
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.db")

	backend, err := NewSQLiteBackend(ctx, path, testLogger())
	require.NoError(t, err)
	defer backend.Close()

	assert.True(t, backend.Available(ctx))

	_, err = backend.Load(ctx)
	assert.ErrorIs(t, err, interfaces.ErrSnapshotNotFound)

	snapshot := richSnapshot()
	require.NoError(t, backend.Save(ctx, snapshot))

	loaded, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot, loaded)

	// Shrinking the table drops rows that are no longer present
	snapshot.Entities = snapshot.Entities[1:]
	snapshot.Generation = 13
	snapshot.Nonce = 9
	require.NoError(t, backend.Save(ctx, snapshot))

	loaded, err = backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot, loaded)
}

func TestSQLiteBackend_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.db")

	backend, err := NewSQLiteBackend(ctx, path, testLogger())
	require.NoError(t, err)
	require.NoError(t, backend.Save(ctx, richSnapshot()))
	require.NoError(t, backend.Close())

	reopened, err := NewSQLiteBackend(ctx, path, testLogger())
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, richSnapshot(), loaded)
}

func TestRebind(t *testing.T) {
	pg := &sqlSnapshotStore{placeholders: dollarPlaceholders}
	assert.Equal(t, "INSERT INTO t(a, b) VALUES($1, $2)", pg.rebind("INSERT INTO t(a, b) VALUES(?, ?)"))

	lite := &sqlSnapshotStore{placeholders: questionPlaceholders}
	assert.Equal(t, "SELECT ? FROM t", lite.rebind("SELECT ? FROM t"))
}

func TestSnapshotDigest(t *testing.T) {
	a, err := richSnapshot().Digest()
	require.NoError(t, err)
	b, err := richSnapshot().Digest()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	changed := richSnapshot()
	changed.Nonce++
	c, err := changed.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

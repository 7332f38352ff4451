package entitystore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/be-registry/interfaces"
	"github.com/ruteri/be-registry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	beA   = common.HexToAddress("0xa000000000000000000000000000000000000001")
	beB   = common.HexToAddress("0xa000000000000000000000000000000000000002")
	beC   = common.HexToAddress("0xa000000000000000000000000000000000000003")
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	carol = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func entity(id string, admins []common.Address, owners []common.Address) interfaces.BusinessEntity {
	e := interfaces.BusinessEntity{ID: id, Status: interfaces.StatusLive}
	for _, a := range admins {
		e.Admins = append(e.Admins, interfaces.Admin{AdminAddress: a})
	}
	for _, o := range owners {
		e.Owners = append(e.Owners, interfaces.Owner{OwnerAddress: o, OwnerShares: 1})
	}
	return e
}

func put(t *testing.T, s *Store, address common.Address, e interfaces.BusinessEntity) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), func(tx interfaces.EntityWriter) error {
		return tx.Put(address, e)
	}))
}

func addressesFor(t *testing.T, s *Store, user common.Address) []common.Address {
	t.Helper()
	var res []common.Address
	require.NoError(t, s.View(context.Background(), func(tx interfaces.EntityReader) error {
		res = tx.AddressesFor(user)
		return nil
	}))
	return res
}

func TestStore_PutGet(t *testing.T) {
	s := NewMemory()
	put(t, s, beA, entity("a", []common.Address{alice}, nil))

	require.NoError(t, s.View(context.Background(), func(tx interfaces.EntityReader) error {
		got, err := tx.Get(beA)
		require.NoError(t, err)
		assert.Equal(t, "a", got.ID)
		assert.True(t, tx.Exists(beA))
		assert.False(t, tx.Exists(beB))

		_, err = tx.Get(beB)
		assert.ErrorIs(t, err, interfaces.ErrNotFound)
		return nil
	}))
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewMemory()
	e := entity("a", []common.Address{alice}, nil)
	put(t, s, beA, e)

	// Mutating the caller's value after Put must not leak into the store
	e.Admins[0].AdminAddress = bob

	require.NoError(t, s.View(context.Background(), func(tx interfaces.EntityReader) error {
		got, err := tx.Get(beA)
		require.NoError(t, err)
		assert.Equal(t, alice, got.Admins[0].AdminAddress)

		got.Admins[0].AdminAddress = carol
		again, err := tx.Get(beA)
		require.NoError(t, err)
		assert.Equal(t, alice, again.Admins[0].AdminAddress)
		return nil
	}))
}

func TestStore_ListAllInsertionOrderWithTombstones(t *testing.T) {
	s := NewMemory()
	put(t, s, beB, entity("b", nil, nil))
	put(t, s, beA, entity("a", nil, nil))

	require.NoError(t, s.Update(context.Background(), func(tx interfaces.EntityWriter) error {
		return tx.Remove(beB)
	}))

	require.NoError(t, s.View(context.Background(), func(tx interfaces.EntityReader) error {
		all := tx.ListAll()
		require.Len(t, all, 2)
		assert.Equal(t, "b", all[0].Entity.ID)
		assert.True(t, all[0].Tombstoned)
		assert.Equal(t, "a", all[1].Entity.ID)
		assert.False(t, all[1].Tombstoned)

		_, err := tx.Get(beB)
		assert.ErrorIs(t, err, interfaces.ErrNotFound)
		assert.True(t, tx.Exists(beB))
		return nil
	}))
}

func TestStore_RemoveErrors(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	err := s.Update(ctx, func(tx interfaces.EntityWriter) error { return tx.Remove(beA) })
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	put(t, s, beA, entity("a", nil, nil))
	require.NoError(t, s.Update(ctx, func(tx interfaces.EntityWriter) error { return tx.Remove(beA) }))

	err = s.Update(ctx, func(tx interfaces.EntityWriter) error { return tx.Remove(beA) })
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	err = s.Update(ctx, func(tx interfaces.EntityWriter) error { return tx.Put(beA, entity("a2", nil, nil)) })
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestStore_IndexDropsStaleAssociations(t *testing.T) {
	s := NewMemory()
	put(t, s, beA, entity("a", []common.Address{alice}, []common.Address{bob}))
	put(t, s, beB, entity("b", []common.Address{bob}, nil))

	assert.Equal(t, []common.Address{beA}, addressesFor(t, s, alice))
	assert.Equal(t, []common.Address{beA, beB}, addressesFor(t, s, bob))

	// Replace the image of A: alice and bob out, carol in
	put(t, s, beA, entity("a", []common.Address{carol}, nil))

	assert.Empty(t, addressesFor(t, s, alice))
	assert.Equal(t, []common.Address{beB}, addressesFor(t, s, bob))
	assert.Equal(t, []common.Address{beA}, addressesFor(t, s, carol))
}

func TestStore_IndexKeepsPositionOnOverwrite(t *testing.T) {
	s := NewMemory()
	put(t, s, beA, entity("a", []common.Address{alice}, nil))
	put(t, s, beB, entity("b", []common.Address{alice}, nil))

	put(t, s, beA, entity("a", []common.Address{alice}, []common.Address{bob}))

	assert.Equal(t, []common.Address{beA, beB}, addressesFor(t, s, alice))
}

func TestStore_IndexCountsEachListEntryOnce(t *testing.T) {
	s := NewMemory()
	// alice is both admin and owner
	put(t, s, beA, entity("a", []common.Address{alice}, []common.Address{alice}))

	assert.Equal(t, []common.Address{beA}, addressesFor(t, s, alice))
}

func TestStore_FailedUpdateLeavesStoreUnchanged(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	put(t, s, beA, entity("a", []common.Address{alice}, nil))
	before := s.Snapshot()

	boom := errors.New("boom")
	err := s.Update(ctx, func(tx interfaces.EntityWriter) error {
		tx.NextNonce()
		if err := tx.Put(beB, entity("b", []common.Address{alice}, nil)); err != nil {
			return err
		}
		if err := tx.Put(beA, entity("a-changed", []common.Address{bob}, nil)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, []common.Address{beA}, addressesFor(t, s, alice))
	assert.Empty(t, addressesFor(t, s, bob))
}

func TestStore_ReadOnlyView(t *testing.T) {
	s := NewMemory()
	err := s.View(context.Background(), func(tx interfaces.EntityReader) error {
		w, ok := tx.(interfaces.EntityWriter)
		require.True(t, ok)
		return w.Put(beA, entity("a", nil, nil))
	})
	assert.ErrorIs(t, err, errReadOnly)
	assert.Equal(t, 0, s.Stats().Live)
}

func TestStore_CanceledContext(t *testing.T) {
	s := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Update(ctx, func(tx interfaces.EntityWriter) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestStore_Nonce(t *testing.T) {
	s := NewMemory()
	var got []uint64
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Update(context.Background(), func(tx interfaces.EntityWriter) error {
			got = append(got, tx.NextNonce())
			return nil
		}))
	}
	assert.Equal(t, []uint64{0, 1, 2}, got)
	assert.Equal(t, uint64(3), s.Stats().Nonce)
}

func TestStore_PersistAndRestore(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend, err := storage.NewFileBackend(t.TempDir(), log)
	require.NoError(t, err)

	s, err := New(ctx, backend, log)
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, func(tx interfaces.EntityWriter) error {
		tx.NextNonce()
		tx.NextNonce()
		if err := tx.Put(beA, entity("a", []common.Address{alice}, nil)); err != nil {
			return err
		}
		return tx.Put(beB, entity("b", []common.Address{alice}, []common.Address{bob}))
	}))
	require.NoError(t, s.Update(ctx, func(tx interfaces.EntityWriter) error {
		return tx.Remove(beA)
	}))

	restored, err := New(ctx, backend, log)
	require.NoError(t, err)

	assert.Equal(t, s.Snapshot(), restored.Snapshot())
	assert.Equal(t, Stats{Live: 1, Tombstoned: 1, Nonce: 2, Generation: 2}, restored.Stats())
	assert.Equal(t, []common.Address{beA, beB}, addressesFor(t, restored, alice))
	assert.Equal(t, []common.Address{beB}, addressesFor(t, restored, bob))
}

type failingBackend struct {
	interfaces.StorageBackend
	err error
}

func (f *failingBackend) Save(ctx context.Context, snapshot *interfaces.Snapshot) error {
	return f.err
}

func TestStore_PersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	fileBackend, err := storage.NewFileBackend(t.TempDir(), log)
	require.NoError(t, err)

	s, err := New(ctx, fileBackend, log)
	require.NoError(t, err)
	put(t, s, beA, entity("a", nil, nil))

	saveErr := errors.New("disk full")
	s.backend = &failingBackend{StorageBackend: fileBackend, err: saveErr}

	err = s.Update(ctx, func(tx interfaces.EntityWriter) error {
		return tx.Put(beB, entity("b", nil, nil))
	})
	require.ErrorIs(t, err, saveErr)

	assert.Equal(t, Stats{Live: 1, Generation: 1}, s.Stats())
	require.NoError(t, s.View(ctx, func(tx interfaces.EntityReader) error {
		assert.False(t, tx.Exists(beB))
		return nil
	}))
}

func TestStore_NoopUpdateSkipsPersistence(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	fileBackend, err := storage.NewFileBackend(t.TempDir(), log)
	require.NoError(t, err)
	s, err := New(ctx, fileBackend, log)
	require.NoError(t, err)

	s.backend = &failingBackend{StorageBackend: fileBackend, err: errors.New("unexpected save")}
	assert.NoError(t, s.Update(ctx, func(tx interfaces.EntityWriter) error { return nil }))
}

func TestStore_GenerationCountsCommittedUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	put(t, s, beA, entity("a", nil, nil))
	put(t, s, beB, entity("b", nil, nil))
	assert.Equal(t, uint64(2), s.Snapshot().Generation)

	require.NoError(t, s.Update(ctx, func(tx interfaces.EntityWriter) error { return nil }))
	require.Error(t, s.Update(ctx, func(tx interfaces.EntityWriter) error {
		if err := tx.Put(beC, entity("c", nil, nil)); err != nil {
			return err
		}
		return errors.New("abort")
	}))
	assert.Equal(t, uint64(2), s.Stats().Generation)

	require.NoError(t, s.Update(ctx, func(tx interfaces.EntityWriter) error {
		return tx.Remove(beA)
	}))
	assert.Equal(t, uint64(3), s.Stats().Generation)
}

package registry

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/be-registry/entitystore"
	"github.com/ruteri/be-registry/interfaces"
	"github.com/ruteri/be-registry/logic"
	"github.com/ruteri/be-registry/metrics"
	"github.com/ruteri/be-registry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	registryAddr = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	adminAddr    = common.HexToAddress("0x421F64C3f22AeE7BE98a019d7F1D5D23f346c10a")
	ownerAddr    = common.HexToAddress("0xFFfCd0B404c3d8AE38Ea2966bAD5A75D5Ab6ce0F")

	t0 = time.Date(2024, 6, 4, 3, 37, 48, 0, time.UTC)
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func payload(expiresAt time.Time) interfaces.BusinessEntity {
	return interfaces.BusinessEntity{
		ID:            "4231",
		Visibility:    "Anonymous",
		Admins:        []interfaces.Admin{{AdminAddress: adminAddr}},
		ReserveAdmins: []interfaces.ReserveAdmin{{ReserveAdminAddress: ownerAddr}},
		Threshold:     90,
		AccessMode:    "ANY_ONE",
		Owners: []interfaces.Owner{{
			OwnerAddress: ownerAddr,
			OwnerShares:  989,
			OwnerAccess:  []string{"abc", "def"},
		}},
		NotificationParties: []interfaces.NotificationParty{{
			PartyAddress: ownerAddr,
			PartyAccess:  []string{"abc"},
		}},
		ExpiresAt: expiresAt,
		Active:    true,
	}
}

func newTestRegistry(t *testing.T, store interfaces.EntityStore, clock interfaces.Clock, m *metrics.Metrics) *Registry {
	t.Helper()
	r, err := New(Config{
		Address: registryAddr,
		Store:   store,
		Logic:   logic.New(),
		Clock:   clock,
		Metrics: m,
		Log:     slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	return r
}

func TestNew_RequiresStoreAndLogic(t *testing.T) {
	_, err := New(Config{Logic: logic.New()})
	assert.Error(t, err)

	_, err = New(Config{Store: entitystore.NewMemory()})
	assert.ErrorIs(t, err, ErrNoLogic)
}

func TestRegistry_UsesClockAndAddress(t *testing.T) {
	clock := &testClock{now: t0}
	r := newTestRegistry(t, entitystore.NewMemory(), clock, nil)
	ctx := context.Background()

	address, err := r.RegisterBE(ctx, ownerAddr, payload(t0.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(registryAddr, 0), address)
	assert.Equal(t, registryAddr, r.Address())

	entity, err := r.GetBE(ctx, ownerAddr, address)
	require.NoError(t, err)
	assert.Equal(t, t0, entity.CreatedAt)
	assert.Equal(t, interfaces.StatusLive, entity.Status)
}

func TestRegistry_UpgradeKeepsEntities(t *testing.T) {
	r := newTestRegistry(t, entitystore.NewMemory(), &testClock{now: t0}, nil)
	ctx := context.Background()

	address, err := r.RegisterBE(ctx, ownerAddr, payload(t0.Add(time.Hour)))
	require.NoError(t, err)

	info, err := r.LogicInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, interfaces.LogicInfo{Registry: registryAddr, Version: logic.Version}, info)

	require.NoError(t, r.Upgrade(logic.New(logic.WithVersion("1.1.0"), logic.WithRequireDeregistration(true))))

	info, err = r.LogicInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", info.Version)
	assert.Equal(t, registryAddr, info.Registry)

	entity, err := r.GetBE(ctx, ownerAddr, address)
	require.NoError(t, err)
	assert.Equal(t, "4231", entity.ID)

	// the upgraded logic enforces deregistration before deletion
	err = r.DeleteBE(ctx, ownerAddr, address)
	assert.ErrorIs(t, err, interfaces.ErrInvalidTransition)

	// addresses keep advancing from the stored nonce
	second, err := r.RegisterBE(ctx, ownerAddr, payload(t0.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(registryAddr, 1), second)

	assert.ErrorIs(t, r.Upgrade(nil), ErrNoLogic)
}

func TestRegistry_OwnerLifecycle(t *testing.T) {
	clock := &testClock{now: t0}
	r := newTestRegistry(t, entitystore.NewMemory(), clock, nil)
	ctx := context.Background()

	shortLived, err := r.RegisterBE(ctx, ownerAddr, payload(t0.Add(time.Minute)))
	require.NoError(t, err)
	longLived, err := r.RegisterBE(ctx, ownerAddr, payload(t0.Add(24*time.Hour)))
	require.NoError(t, err)

	clock.now = t0.Add(time.Minute)
	res, err := r.GetBEsByUser(ctx, ownerAddr, ownerAddr)
	require.NoError(t, err)
	require.Len(t, res.Expired, 1)
	require.Len(t, res.NotExpired, 1)
	assert.Equal(t, shortLived, res.Expired[0].BEAddress)
	assert.Equal(t, longLived, res.NotExpired[0].BEAddress)

	require.NoError(t, r.ChangeBEStatus(ctx, adminAddr, longLived, interfaces.StatusDeregistered))
	err = r.UpdateBE(ctx, adminAddr, longLived, payload(t0.Add(48*time.Hour)))
	assert.ErrorIs(t, err, interfaces.ErrForbidden)

	require.NoError(t, r.DeleteBE(ctx, adminAddr, longLived))
	_, err = r.GetBE(ctx, adminAddr, longLived)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	all, err := r.GetAllBEs(ctx, adminAddr)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, shortLived, all[0].BEAddress)

	res, err = r.GetBEsByUser(ctx, adminAddr, adminAddr)
	require.NoError(t, err)
	assert.Empty(t, res.NotExpired)
	assert.Len(t, res.Expired, 1)
}

func TestRegistry_Metrics(t *testing.T) {
	m := metrics.NewMetrics()
	r := newTestRegistry(t, entitystore.NewMemory(), &testClock{now: t0}, m)
	ctx := context.Background()

	address, err := r.RegisterBE(ctx, ownerAddr, payload(t0.Add(time.Hour)))
	require.NoError(t, err)
	_, err = r.RegisterBE(ctx, ownerAddr, payload(t0.Add(time.Hour)))
	require.NoError(t, err)
	require.NoError(t, r.DeleteBE(ctx, ownerAddr, address))
	_, err = r.GetBE(ctx, ownerAddr, address)
	require.ErrorIs(t, err, interfaces.ErrNotFound)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, `registry_operations_total{operation="registerBE",result="ok"} 2`)
	assert.Contains(t, body, `registry_operations_total{operation="deleteBE",result="ok"} 1`)
	assert.Contains(t, body, `registry_operations_total{operation="getBE",result="not_found"} 1`)
	assert.Contains(t, body, `registry_entities{state="live"} 1`)
	assert.Contains(t, body, `registry_entities{state="tombstoned"} 1`)
}

func TestRegistry_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	log := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	backend, err := storage.NewFileBackend(dir, log)
	require.NoError(t, err)
	store, err := entitystore.New(ctx, backend, log)
	require.NoError(t, err)

	r := newTestRegistry(t, store, &testClock{now: t0}, nil)
	deleted, err := r.RegisterBE(ctx, ownerAddr, payload(t0.Add(time.Hour)))
	require.NoError(t, err)
	kept, err := r.RegisterBE(ctx, ownerAddr, payload(t0.Add(time.Hour)))
	require.NoError(t, err)
	require.NoError(t, r.DeleteBE(ctx, ownerAddr, deleted))

	backend, err = storage.NewFileBackend(dir, log)
	require.NoError(t, err)
	restored, err := entitystore.New(ctx, backend, log)
	require.NoError(t, err)

	r = newTestRegistry(t, restored, &testClock{now: t0}, nil)
	entity, err := r.GetBE(ctx, ownerAddr, kept)
	require.NoError(t, err)
	assert.Equal(t, kept, entity.BEAddress)

	_, err = r.GetBE(ctx, ownerAddr, deleted)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	next, err := r.RegisterBE(ctx, ownerAddr, payload(t0.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(registryAddr, 2), next)
}

// switchableBackend lets a test take a backend offline and bring it back.
type switchableBackend struct {
	interfaces.StorageBackend
	offline bool
}

func (b *switchableBackend) Available(ctx context.Context) bool {
	return !b.offline && b.StorageBackend.Available(ctx)
}

func TestRegistry_RestartFromReplicasAtDifferentGenerations(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	log := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	openReplicas := func() (*switchableBackend, *switchableBackend) {
		a, err := storage.NewFileBackend(dirA, log)
		require.NoError(t, err)
		b, err := storage.NewFileBackend(dirB, log)
		require.NoError(t, err)
		return &switchableBackend{StorageBackend: a}, &switchableBackend{StorageBackend: b}
	}

	replicaA, replicaB := openReplicas()
	store, err := entitystore.New(ctx, storage.NewMultiStorageBackend([]interfaces.StorageBackend{replicaA, replicaB}, log), log)
	require.NoError(t, err)
	r := newTestRegistry(t, store, &testClock{now: t0}, nil)

	first, err := r.RegisterBE(ctx, ownerAddr, payload(t0.Add(time.Hour)))
	require.NoError(t, err)

	// Only B receives the second registration.
	replicaA.offline = true
	second, err := r.RegisterBE(ctx, ownerAddr, payload(t0.Add(time.Hour)))
	require.NoError(t, err)

	replicaA, replicaB = openReplicas()
	restored, err := entitystore.New(ctx, storage.NewMultiStorageBackend([]interfaces.StorageBackend{replicaA, replicaB}, log), log)
	require.NoError(t, err)
	assert.Equal(t, entitystore.Stats{Live: 2, Nonce: 2, Generation: 2}, restored.Stats())

	r = newTestRegistry(t, restored, &testClock{now: t0}, nil)
	for _, address := range []common.Address{first, second} {
		entity, err := r.GetBE(ctx, ownerAddr, address)
		require.NoError(t, err)
		assert.Equal(t, address, entity.BEAddress)
	}

	repaired, err := replicaA.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), repaired.Generation)
	assert.Len(t, repaired.Entities, 2)

	next, err := r.RegisterBE(ctx, ownerAddr, payload(t0.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, crypto.CreateAddress(registryAddr, 2), next)
	assert.NotEqual(t, first, next)
	assert.NotEqual(t, second, next)
}

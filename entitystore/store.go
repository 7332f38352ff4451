package entitystore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/be-registry/interfaces"
)

var _ interfaces.EntityStore = (*Store)(nil)

// Store is the registry's entity store: an in-memory table with a user
// index, optionally persisted to a snapshot backend after every committed
// Update.
type Store struct {
	mu      sync.RWMutex
	state   *state
	backend interfaces.StorageBackend
	log     *slog.Logger
}

// Stats summarizes the store contents.
type Stats struct {
	Live       int
	Tombstoned int
	Nonce      uint64
	Generation uint64
}

// NewMemory creates a store without persistence.
func NewMemory() *Store {
	return &Store{
		state: newState(),
		log:   slog.New(slog.DiscardHandler),
	}
}

// New creates a store persisted to backend, restoring the last snapshot the
// backend holds. A backend without a snapshot yields an empty store.
func New(ctx context.Context, backend interfaces.StorageBackend, log *slog.Logger) (*Store, error) {
	if backend == nil {
		return nil, errors.New("storage backend is required")
	}
	if log == nil {
		log = slog.Default()
	}

	st := newState()
	snap, err := backend.Load(ctx)
	switch {
	case errors.Is(err, interfaces.ErrSnapshotNotFound):
		log.Info("No snapshot found, starting with an empty store", "backend", backend.Name())
	case err != nil:
		return nil, fmt.Errorf("failed to load snapshot from %s: %w", backend.Name(), err)
	default:
		st, err = stateFromSnapshot(snap)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot in %s: %w", backend.Name(), err)
		}
		live, tombstoned := st.counts()
		digest, err := snap.Digest()
		if err != nil {
			return nil, err
		}
		log.Info("Restored entity store",
			"backend", backend.Name(),
			"live", live,
			"tombstoned", tombstoned,
			"nonce", st.nonce,
			"generation", st.generation,
			"digest", digest.Hex())
	}

	return &Store{
		state:   st,
		backend: backend,
		log:     log,
	}, nil
}

// View runs fn against a consistent read-only view of the store.
func (s *Store) View(ctx context.Context, fn func(tx interfaces.EntityReader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&txn{state: s.state})
}

// Update runs fn in an exclusive write transaction. The changes become
// visible only if fn succeeds and the resulting snapshot was persisted;
// otherwise the store is left exactly as it was.
func (s *Store) Update(ctx context.Context, fn func(tx interfaces.EntityWriter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txn{state: s.state.clone(), writable: true}
	if err := fn(tx); err != nil {
		return err
	}

	if !tx.dirty {
		return nil
	}
	tx.state.generation++

	if s.backend != nil {
		start := time.Now()
		if err := s.backend.Save(ctx, tx.state.snapshot()); err != nil {
			s.log.Error("Failed to persist entity store", "backend", s.backend.Name(), "err", err)
			return fmt.Errorf("failed to persist entity store: %w", err)
		}
		s.log.Debug("Persisted entity store",
			"backend", s.backend.Name(),
			"generation", tx.state.generation,
			"duration", time.Since(start))
	}

	s.state = tx.state
	return nil
}

// Stats returns the current record counts and address nonce.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	live, tombstoned := s.state.counts()
	return Stats{Live: live, Tombstoned: tombstoned, Nonce: s.state.nonce, Generation: s.state.generation}
}

// Snapshot returns a copy of the store contents in persisted form.
func (s *Store) Snapshot() *interfaces.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.snapshot()
}

// txn exposes a state to a transaction function. Read-only transactions
// share the live state and reject writes.
type txn struct {
	state    *state
	writable bool
	dirty    bool
}

var errReadOnly = errors.New("write in read-only transaction")

func (t *txn) Get(address common.Address) (interfaces.BusinessEntity, error) {
	return t.state.get(address)
}

func (t *txn) ListAll() []interfaces.StoredEntity {
	return t.state.listAll()
}

func (t *txn) AddressesFor(user common.Address) []common.Address {
	return t.state.addressesFor(user)
}

func (t *txn) Exists(address common.Address) bool {
	return t.state.exists(address)
}

func (t *txn) Put(address common.Address, entity interfaces.BusinessEntity) error {
	if !t.writable {
		return errReadOnly
	}
	if err := t.state.put(address, entity); err != nil {
		return err
	}
	t.dirty = true
	return nil
}

func (t *txn) Remove(address common.Address) error {
	if !t.writable {
		return errReadOnly
	}
	if err := t.state.remove(address); err != nil {
		return err
	}
	t.dirty = true
	return nil
}

func (t *txn) NextNonce() uint64 {
	t.dirty = true
	return t.state.nextNonce()
}

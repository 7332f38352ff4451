package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/be-registry/entitystore"
	"github.com/ruteri/be-registry/interfaces"
	"github.com/ruteri/be-registry/metrics"
	"go.uber.org/atomic"
)

// ErrNoLogic is returned when installing a nil logic implementation.
var ErrNoLogic = errors.New("no registry logic provided")

var _ interfaces.EntityRegistry = (*Registry)(nil)

// Config configures a Registry.
type Config struct {
	// Address identifies the registry and seeds entity address derivation.
	Address common.Address
	Store   interfaces.EntityStore
	Logic   interfaces.RegistryLogic
	// Clock defaults to interfaces.SystemClock.
	Clock   interfaces.Clock
	Metrics *metrics.Metrics
	Log     *slog.Logger
}

type installedLogic struct {
	impl interfaces.RegistryLogic
}

// Registry is the single entry point of the business entity registry. It
// owns the entity store and forwards every operation to the installed logic,
// which can be replaced at runtime with Upgrade.
type Registry struct {
	address common.Address
	store   interfaces.EntityStore
	clock   interfaces.Clock
	metrics *metrics.Metrics
	log     *slog.Logger

	logic atomic.Pointer[installedLogic]
}

// New creates a registry entry point.
func New(cfg Config) (*Registry, error) {
	if cfg.Store == nil {
		return nil, errors.New("entity store is required")
	}
	if cfg.Logic == nil {
		return nil, ErrNoLogic
	}
	if cfg.Clock == nil {
		cfg.Clock = interfaces.SystemClock
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	r := &Registry{
		address: cfg.Address,
		store:   cfg.Store,
		clock:   cfg.Clock,
		metrics: cfg.Metrics,
		log:     cfg.Log.With("registry", cfg.Address.Hex()),
	}
	r.logic.Store(&installedLogic{impl: cfg.Logic})
	r.refreshEntityCounts()

	return r, nil
}

// Address returns the registry address.
func (r *Registry) Address() common.Address {
	return r.address
}

// Upgrade installs a new logic implementation. Operations already running
// finish on the logic they started with; stored entities are untouched.
func (r *Registry) Upgrade(logic interfaces.RegistryLogic) error {
	if logic == nil {
		return ErrNoLogic
	}
	previous := r.logic.Swap(&installedLogic{impl: logic})
	r.log.Info("Registry logic upgraded",
		"from", previous.impl.Version(),
		"to", logic.Version())
	return nil
}

// LogicInfo reports the registry address and the installed logic version.
func (r *Registry) LogicInfo(ctx context.Context) (interfaces.LogicInfo, error) {
	return interfaces.LogicInfo{
		Registry: r.address,
		Version:  r.current().Version(),
	}, nil
}

func (r *Registry) RegisterBE(ctx context.Context, caller common.Address, data interfaces.BusinessEntity) (common.Address, error) {
	start := time.Now()
	address, err := r.current().RegisterBE(ctx, r.callContext(caller), data)
	r.observe("registerBE", caller, start, err, true)
	if err == nil {
		r.log.Info("Business entity registered",
			"address", address.Hex(),
			"id", data.ID,
			"caller", caller.Hex())
	}
	return address, err
}

func (r *Registry) GetAllBEs(ctx context.Context, caller common.Address) ([]interfaces.BusinessEntity, error) {
	start := time.Now()
	entities, err := r.current().GetAllBEs(ctx, r.callContext(caller))
	r.observe("getAllBEs", caller, start, err, false)
	return entities, err
}

func (r *Registry) GetBE(ctx context.Context, caller common.Address, address common.Address) (interfaces.BusinessEntity, error) {
	start := time.Now()
	entity, err := r.current().GetBE(ctx, r.callContext(caller), address)
	r.observe("getBE", caller, start, err, false)
	return entity, err
}

func (r *Registry) GetBEsByUser(ctx context.Context, caller common.Address, user common.Address) (interfaces.UserEntities, error) {
	start := time.Now()
	res, err := r.current().GetBEsByUser(ctx, r.callContext(caller), user)
	r.observe("getBEsByUser", caller, start, err, false)
	return res, err
}

func (r *Registry) UpdateBE(ctx context.Context, caller common.Address, address common.Address, data interfaces.BusinessEntity) error {
	start := time.Now()
	err := r.current().UpdateBE(ctx, r.callContext(caller), address, data)
	r.observe("updateBE", caller, start, err, true)
	if err == nil {
		r.log.Info("Business entity updated", "address", address.Hex(), "caller", caller.Hex())
	}
	return err
}

func (r *Registry) ChangeBEStatus(ctx context.Context, caller common.Address, address common.Address, status interfaces.Status) error {
	start := time.Now()
	err := r.current().ChangeBEStatus(ctx, r.callContext(caller), address, status)
	r.observe("changeBEStatus", caller, start, err, true)
	if err == nil {
		r.log.Info("Business entity status changed",
			"address", address.Hex(),
			"status", status,
			"caller", caller.Hex())
	}
	return err
}

func (r *Registry) DeleteBE(ctx context.Context, caller common.Address, address common.Address) error {
	start := time.Now()
	err := r.current().DeleteBE(ctx, r.callContext(caller), address)
	r.observe("deleteBE", caller, start, err, true)
	if err == nil {
		r.log.Info("Business entity deleted", "address", address.Hex(), "caller", caller.Hex())
	}
	return err
}

func (r *Registry) current() interfaces.RegistryLogic {
	return r.logic.Load().impl
}

func (r *Registry) callContext(caller common.Address) interfaces.CallContext {
	return interfaces.CallContext{
		Store:    r.store,
		Registry: r.address,
		Caller:   caller,
		Now:      r.clock.Now(),
	}
}

func (r *Registry) observe(operation string, caller common.Address, start time.Time, err error, mutating bool) {
	elapsed := time.Since(start)
	r.metrics.ObserveOperation(operation, err, elapsed)

	if err != nil {
		level := slog.LevelDebug
		if metrics.ResultLabel(err) == metrics.ResultError {
			level = slog.LevelError
		}
		r.log.Log(context.Background(), level, "Registry operation failed",
			"operation", operation,
			"caller", caller.Hex(),
			"err", err)
		return
	}

	if mutating {
		r.refreshEntityCounts()
	}
}

type statsProvider interface {
	Stats() entitystore.Stats
}

func (r *Registry) refreshEntityCounts() {
	if s, ok := r.store.(statsProvider); ok {
		stats := s.Stats()
		r.metrics.SetEntityCounts(stats.Live, stats.Tombstoned)
	}
}

package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/be-registry/interfaces"
)

// Version of the registry logic implemented by this package.
const Version = "1.0.0"

var _ interfaces.RegistryLogic = (*Logic)(nil)

// Logic implements interfaces.RegistryLogic. It holds configuration only;
// all registry state lives in the store passed with each call.
type Logic struct {
	version               string
	requireDeregistration bool
}

// Option configures a Logic.
type Option func(*Logic)

// WithRequireDeregistration makes DeleteBE reject live entities, so that
// deletion is only reachable after deregistration.
func WithRequireDeregistration(require bool) Option {
	return func(l *Logic) {
		l.requireDeregistration = require
	}
}

// WithVersion overrides the reported logic version.
func WithVersion(version string) Option {
	return func(l *Logic) {
		l.version = version
	}
}

// New creates the registry logic.
func New(opts ...Option) *Logic {
	l := &Logic{version: Version}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Logic) Version() string {
	return l.version
}

// RegisterBE validates data and stores it as a new live entity at a freshly
// derived address. The payload's beAddress, status and timestamps are
// replaced by the registry.
func (l *Logic) RegisterBE(ctx context.Context, call interfaces.CallContext, data interfaces.BusinessEntity) (common.Address, error) {
	if err := validatePayload(data); err != nil {
		return common.Address{}, err
	}

	var address common.Address
	err := call.Store.Update(ctx, func(tx interfaces.EntityWriter) error {
		if data.BEAddress != (common.Address{}) && tx.Exists(data.BEAddress) {
			return interfaces.NewValidationError("beAddress",
				fmt.Sprintf("address %s belongs to an existing entity", data.BEAddress.Hex()))
		}

		address = deriveAddress(tx, call.Registry)

		entity := data.Clone()
		entity.BEAddress = address
		entity.Status = interfaces.StatusLive
		entity.CreatedAt = call.Now
		entity.UpdatedAt = call.Now
		entity.LastActionAt = call.Now

		return tx.Put(address, entity)
	})
	if err != nil {
		return common.Address{}, err
	}
	return address, nil
}

// GetAllBEs returns every entity that has not been deleted, in creation order.
func (l *Logic) GetAllBEs(ctx context.Context, call interfaces.CallContext) ([]interfaces.BusinessEntity, error) {
	res := []interfaces.BusinessEntity{}
	err := call.Store.View(ctx, func(tx interfaces.EntityReader) error {
		for _, stored := range tx.ListAll() {
			if stored.Tombstoned {
				continue
			}
			res = append(res, stored.Entity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetBE returns the entity at address.
func (l *Logic) GetBE(ctx context.Context, call interfaces.CallContext, address common.Address) (interfaces.BusinessEntity, error) {
	var entity interfaces.BusinessEntity
	err := call.Store.View(ctx, func(tx interfaces.EntityReader) error {
		var err error
		entity, err = tx.Get(address)
		return err
	})
	return entity, err
}

// GetBEsByUser returns the entities user is associated with as admin,
// reserve admin, owner or notification party, split by whether they expired
// at call.Now.
func (l *Logic) GetBEsByUser(ctx context.Context, call interfaces.CallContext, user common.Address) (interfaces.UserEntities, error) {
	res := interfaces.UserEntities{
		NotExpired: []interfaces.BusinessEntity{},
		Expired:    []interfaces.BusinessEntity{},
	}
	err := call.Store.View(ctx, func(tx interfaces.EntityReader) error {
		for _, address := range tx.AddressesFor(user) {
			entity, err := tx.Get(address)
			if err != nil {
				// deleted entities stay in the index
				continue
			}
			if entity.IsExpired(call.Now) {
				res.Expired = append(res.Expired, entity)
			} else {
				res.NotExpired = append(res.NotExpired, entity)
			}
		}
		return nil
	})
	if err != nil {
		return interfaces.UserEntities{}, err
	}
	return res, nil
}

// UpdateBE replaces the entity at address with data, keeping its address,
// status and creation time.
func (l *Logic) UpdateBE(ctx context.Context, call interfaces.CallContext, address common.Address, data interfaces.BusinessEntity) error {
	return call.Store.Update(ctx, func(tx interfaces.EntityWriter) error {
		existing, err := tx.Get(address)
		if err != nil {
			return err
		}
		if existing.Status != interfaces.StatusLive {
			return fmt.Errorf("%w: entity %s is %s", interfaces.ErrForbidden, address.Hex(), existing.Status)
		}
		if err := validatePayload(data); err != nil {
			return err
		}

		entity := data.Clone()
		entity.BEAddress = existing.BEAddress
		entity.Status = existing.Status
		entity.CreatedAt = existing.CreatedAt
		touch(&entity, existing, call.Now)

		return tx.Put(address, entity)
	})
}

// ChangeBEStatus moves the entity at address to status. Only a live entity
// can be deregistered; deletion goes through DeleteBE.
func (l *Logic) ChangeBEStatus(ctx context.Context, call interfaces.CallContext, address common.Address, status interfaces.Status) error {
	return call.Store.Update(ctx, func(tx interfaces.EntityWriter) error {
		existing, err := tx.Get(address)
		if err != nil {
			return err
		}
		if _, err := interfaces.ParseStatus(string(status)); err != nil {
			return err
		}
		if existing.Status != interfaces.StatusLive || status != interfaces.StatusDeregistered {
			return fmt.Errorf("%w: %s -> %s", interfaces.ErrInvalidTransition, existing.Status, status)
		}

		entity := existing.Clone()
		entity.Status = status
		touch(&entity, existing, call.Now)

		return tx.Put(address, entity)
	})
}

// DeleteBE marks the entity at address as deleted and tombstones it.
func (l *Logic) DeleteBE(ctx context.Context, call interfaces.CallContext, address common.Address) error {
	return call.Store.Update(ctx, func(tx interfaces.EntityWriter) error {
		existing, err := tx.Get(address)
		if err != nil {
			return err
		}
		if l.requireDeregistration && existing.Status == interfaces.StatusLive {
			return fmt.Errorf("%w: %s must be deregistered before deletion", interfaces.ErrInvalidTransition, address.Hex())
		}

		entity := existing.Clone()
		entity.Status = interfaces.StatusDeleted
		touch(&entity, existing, call.Now)

		if err := tx.Put(address, entity); err != nil {
			return err
		}
		return tx.Remove(address)
	})
}

// deriveAddress returns the next contract-style address of registry that is
// not taken yet.
func deriveAddress(tx interfaces.EntityWriter, registry common.Address) common.Address {
	for {
		address := crypto.CreateAddress(registry, tx.NextNonce())
		if !tx.Exists(address) {
			return address
		}
	}
}

// touch stamps a mutation at now without letting timestamps go backwards,
// keeping createdAt <= updatedAt <= lastActionAt.
func touch(entity *interfaces.BusinessEntity, existing interfaces.BusinessEntity, now time.Time) {
	entity.UpdatedAt = latest(now, existing.UpdatedAt, existing.CreatedAt)
	entity.LastActionAt = latest(entity.UpdatedAt, existing.LastActionAt)
}

func latest(t time.Time, others ...time.Time) time.Time {
	for _, o := range others {
		if o.After(t) {
			t = o
		}
	}
	return t
}

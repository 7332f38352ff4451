package interfaces

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotFound is returned when an entity address is absent or tombstoned.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput is returned for malformed or disallowed payloads.
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden is returned when mutating an entity that is no longer live.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when a status change is not permitted
	// from the entity's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError describes a rejected payload field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid input: field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid input: %s", e.Message)
}

// Is makes ValidationError match ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// EntityReader provides read access to a consistent view of the store.
type EntityReader interface {
	// Get returns a copy of the entity stored at address.
	// Returns ErrNotFound if the address is absent or tombstoned.
	Get(address common.Address) (BusinessEntity, error)

	// ListAll returns every record in insertion order, tombstones included.
	ListAll() []StoredEntity

	// AddressesFor returns the entity addresses associated with user,
	// in insertion order.
	AddressesFor(user common.Address) []common.Address

	// Exists reports whether address was ever stored, tombstoned or not.
	Exists(address common.Address) bool
}

// EntityWriter extends EntityReader with mutations applied inside a transaction.
type EntityWriter interface {
	EntityReader

	// Put inserts or fully overwrites the record at address and refreshes
	// the user index for it.
	Put(address common.Address, entity BusinessEntity) error

	// Remove tombstones the record at address.
	Remove(address common.Address) error

	// NextNonce returns the next value of the store's address nonce.
	NextNonce() uint64
}

// EntityStore is durable keyed storage for business entities.
// Update transactions are atomic: if fn or persistence fails, nothing is applied.
type EntityStore interface {
	View(ctx context.Context, fn func(tx EntityReader) error) error
	Update(ctx context.Context, fn func(tx EntityWriter) error) error
}

// CallContext is the execution context a registry entry point hands to its logic.
type CallContext struct {
	// Store is the entry point's own storage.
	Store EntityStore
	// Registry is the address of the entry point, the authority for new entity addresses.
	Registry common.Address
	// Caller is the identity that submitted the operation.
	Caller common.Address
	// Now is the time the operation executes at.
	Now time.Time
}

// RegistryLogic implements registry operations against the storage found in
// the CallContext. Implementations hold no registry state and can be replaced
// without migrating data.
type RegistryLogic interface {
	Version() string

	RegisterBE(ctx context.Context, call CallContext, data BusinessEntity) (common.Address, error)
	GetAllBEs(ctx context.Context, call CallContext) ([]BusinessEntity, error)
	GetBE(ctx context.Context, call CallContext, address common.Address) (BusinessEntity, error)
	GetBEsByUser(ctx context.Context, call CallContext, user common.Address) (UserEntities, error)
	UpdateBE(ctx context.Context, call CallContext, address common.Address, data BusinessEntity) error
	ChangeBEStatus(ctx context.Context, call CallContext, address common.Address, status Status) error
	DeleteBE(ctx context.Context, call CallContext, address common.Address) error
}

// EntityRegistry is the operation surface exposed to callers.
type EntityRegistry interface {
	RegisterBE(ctx context.Context, caller common.Address, data BusinessEntity) (common.Address, error)
	GetAllBEs(ctx context.Context, caller common.Address) ([]BusinessEntity, error)
	GetBE(ctx context.Context, caller common.Address, address common.Address) (BusinessEntity, error)
	GetBEsByUser(ctx context.Context, caller common.Address, user common.Address) (UserEntities, error)
	UpdateBE(ctx context.Context, caller common.Address, address common.Address, data BusinessEntity) error
	ChangeBEStatus(ctx context.Context, caller common.Address, address common.Address, status Status) error
	DeleteBE(ctx context.Context, caller common.Address, address common.Address) error
	LogicInfo(ctx context.Context) (LogicInfo, error)
}

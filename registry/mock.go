package registry

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/be-registry/interfaces"
	"github.com/stretchr/testify/mock"
)

var _ interfaces.EntityRegistry = (*MockRegistry)(nil)

// MockRegistry mocks the EntityRegistry interface
type MockRegistry struct {
	mock.Mock
}

// RegisterBE mocks the RegisterBE method
func (m *MockRegistry) RegisterBE(ctx context.Context, caller common.Address, data interfaces.BusinessEntity) (common.Address, error) {
	args := m.Called(ctx, caller, data)
	return args.Get(0).(common.Address), args.Error(1)
}

// GetAllBEs mocks the GetAllBEs method
func (m *MockRegistry) GetAllBEs(ctx context.Context, caller common.Address) ([]interfaces.BusinessEntity, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interfaces.BusinessEntity), args.Error(1)
}

// GetBE mocks the GetBE method
func (m *MockRegistry) GetBE(ctx context.Context, caller common.Address, address common.Address) (interfaces.BusinessEntity, error) {
	args := m.Called(ctx, caller, address)
	return args.Get(0).(interfaces.BusinessEntity), args.Error(1)
}

// GetBEsByUser mocks the GetBEsByUser method
func (m *MockRegistry) GetBEsByUser(ctx context.Context, caller common.Address, user common.Address) (interfaces.UserEntities, error) {
	args := m.Called(ctx, caller, user)
	return args.Get(0).(interfaces.UserEntities), args.Error(1)
}

// UpdateBE mocks the UpdateBE method
func (m *MockRegistry) UpdateBE(ctx context.Context, caller common.Address, address common.Address, data interfaces.BusinessEntity) error {
	args := m.Called(ctx, caller, address, data)
	return args.Error(0)
}

// ChangeBEStatus mocks the ChangeBEStatus method
func (m *MockRegistry) ChangeBEStatus(ctx context.Context, caller common.Address, address common.Address, status interfaces.Status) error {
	args := m.Called(ctx, caller, address, status)
	return args.Error(0)
}

// DeleteBE mocks the DeleteBE method
func (m *MockRegistry) DeleteBE(ctx context.Context, caller common.Address, address common.Address) error {
	args := m.Called(ctx, caller, address)
	return args.Error(0)
}

// LogicInfo mocks the LogicInfo method
func (m *MockRegistry) LogicInfo(ctx context.Context) (interfaces.LogicInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(interfaces.LogicInfo), args.Error(1)
}

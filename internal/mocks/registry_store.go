package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/sharekeeper/internal/model"
)

var _ model.RegistryStore = (*RegistryStore)(nil)

// RegistryStore mocks model.RegistryStore.
type RegistryStore struct {
	mock.Mock
}

func (m *RegistryStore) Load(ctx context.Context) (model.Snapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.Snapshot), args.Error(1)
}

func (m *RegistryStore) Save(ctx context.Context, snapshot model.Snapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

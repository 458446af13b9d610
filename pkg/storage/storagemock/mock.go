package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/raterudder/electrohold/pkg/storage"
	"github.com/raterudder/electrohold/pkg/types"
)

type MockStore struct {
	mock.Mock
}

var _ storage.Store = (*MockStore)(nil)

func (m *MockStore) GetSnapshot(ctx context.Context, resolverID string) (types.CacheEntry, bool, error) {
	args := m.Called(ctx, resolverID)
	// return empty if not specified
	if len(args) > 0 {
		return args.Get(0).(types.CacheEntry), args.Bool(1), args.Error(2)
	}
	return types.CacheEntry{}, false, nil
}

func (m *MockStore) SaveSnapshot(ctx context.Context, resolverID string, entry types.CacheEntry) error {
	args := m.Called(ctx, resolverID, entry)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

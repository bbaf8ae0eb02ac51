package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/brettbedarf/treefs/listing"
)

// MockSource implements listing.Source for testing across packages
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Fetch(ctx context.Context) ([]byte, listing.Format, error) {
	args := m.Called(ctx)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(context.Context) []byte); ok {
		return fn(ctx), args.Get(1).(listing.Format), args.Error(2)
	}

	if args.Get(0) == nil {
		return nil, args.Get(1).(listing.Format), args.Error(2)
	}
	return args.Get(0).([]byte), args.Get(1).(listing.Format), args.Error(2)
}

func (m *MockSource) Location() string {
	args := m.Called()
	return args.String(0)
}

var _ listing.Source = (*MockSource)(nil)

// MockProvider implements listing.Provider for testing across packages
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) NewSource(location string, opts listing.Options) (listing.Source, error) {
	args := m.Called(location, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(listing.Source), args.Error(1)
}

var _ listing.Provider = (*MockProvider)(nil)

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/brettbedarf/filetree"
)

// MockLister implements filetree.Lister for testing across packages
type MockLister struct {
	mock.Mock
}

func (m *MockLister) List(ctx context.Context, key string) ([]string, error) {
	args := m.Called(ctx, key)

	// Handle function return types (for blocking or computed listings)
	if fn, ok := args.Get(0).(func(context.Context, string) []string); ok {
		return fn(ctx, key), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

var _ filetree.Lister = (*MockLister)(nil)

// MockWatcher implements filetree.Watcher for testing across packages
type MockWatcher struct {
	mock.Mock
}

func (m *MockWatcher) Watch(key string, onChange func()) (filetree.Handle, error) {
	args := m.Called(key, onChange)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(filetree.Handle), args.Error(1)
}

var _ filetree.Watcher = (*MockWatcher)(nil)

// MockHandle implements filetree.Handle for testing across packages
type MockHandle struct {
	mock.Mock
}

func (m *MockHandle) Dispose() {
	m.Called()
}

var _ filetree.Handle = (*MockHandle)(nil)

// MockDeleter implements filetree.Deleter for testing across packages
type MockDeleter struct {
	mock.Mock
}

func (m *MockDeleter) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

var _ filetree.Deleter = (*MockDeleter)(nil)

// MockProvider builds listers for registry tests. It satisfies
// adapters.Provider structurally.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) NewLister(raw []byte) (filetree.Lister, error) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(filetree.Lister), args.Error(1)
}

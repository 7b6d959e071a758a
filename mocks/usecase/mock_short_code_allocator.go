package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockShortCodeAllocator is a testify mock of the use case short code allocator.
type MockShortCodeAllocator struct {
	mock.Mock
}

// NewMockShortCodeAllocator creates a new MockShortCodeAllocator and registers an expectation check on cleanup.
func NewMockShortCodeAllocator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockShortCodeAllocator {
	m := new(MockShortCodeAllocator)
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockShortCodeAllocator) Allocate(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockShortCodeAllocator) MaxAttempts() int {
	args := m.Called()
	return args.Int(0)
}

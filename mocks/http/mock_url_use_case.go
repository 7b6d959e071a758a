package http

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

// MockUrlUseCase is a testify mock of the HTTP layer URL use case.
type MockUrlUseCase struct {
	mock.Mock
}

// NewMockUrlUseCase creates a new MockUrlUseCase and registers an expectation check on cleanup.
func NewMockUrlUseCase(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockUrlUseCase {
	m := new(MockUrlUseCase)
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockUrlUseCase) ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	args := m.Called(ctx, originalURL)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (m *MockUrlUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	args := m.Called(ctx, shortCode)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (m *MockUrlUseCase) GetURLStats(ctx context.Context, shortCode string) (*entity.URL, error) {
	args := m.Called(ctx, shortCode)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (m *MockUrlUseCase) ListActiveURLs(ctx context.Context) ([]entity.URL, error) {
	args := m.Called(ctx)
	urls, _ := args.Get(0).([]entity.URL)
	return urls, args.Error(1)
}

func (m *MockUrlUseCase) ListExpiredURLs(ctx context.Context) ([]entity.URL, error) {
	args := m.Called(ctx)
	urls, _ := args.Get(0).([]entity.URL)
	return urls, args.Error(1)
}

func (m *MockUrlUseCase) PurgeExpiredURLs(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

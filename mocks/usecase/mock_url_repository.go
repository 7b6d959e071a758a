package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

// MockUrlRepository is a testify mock of the use case URL repository.
type MockUrlRepository struct {
	mock.Mock
}

// NewMockUrlRepository creates a new MockUrlRepository and registers an expectation check on cleanup.
func NewMockUrlRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockUrlRepository {
	m := new(MockUrlRepository)
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockUrlRepository) Save(ctx context.Context, shortCode, originalURL string, createdAt, expiresAt time.Time) (*entity.URL, error) {
	args := m.Called(ctx, shortCode, originalURL, createdAt, expiresAt)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (m *MockUrlRepository) ExistsByShortCode(ctx context.Context, shortCode string) (bool, error) {
	args := m.Called(ctx, shortCode)
	return args.Bool(0), args.Error(1)
}

func (m *MockUrlRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	args := m.Called(ctx, shortCode)
	url, _ := args.Get(0).(*entity.URL)
	return url, args.Error(1)
}

func (m *MockUrlRepository) Remove(ctx context.Context, shortCode string) error {
	args := m.Called(ctx, shortCode)
	return args.Error(0)
}

func (m *MockUrlRepository) RemoveIfExpired(ctx context.Context, shortCode string, now time.Time) (bool, error) {
	args := m.Called(ctx, shortCode, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockUrlRepository) RetrieveActive(ctx context.Context, now time.Time) ([]entity.URL, error) {
	args := m.Called(ctx, now)
	urls, _ := args.Get(0).([]entity.URL)
	return urls, args.Error(1)
}

func (m *MockUrlRepository) RetrieveExpired(ctx context.Context, now time.Time) ([]entity.URL, error) {
	args := m.Called(ctx, now)
	urls, _ := args.Get(0).([]entity.URL)
	return urls, args.Error(1)
}

func (m *MockUrlRepository) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

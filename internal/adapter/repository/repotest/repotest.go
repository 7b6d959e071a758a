// Package repotest provides a behavioural test suite that every URL
// repository implementation must pass.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

// URLRepository is the contract under test.
type URLRepository interface {
	Save(ctx context.Context, shortCode, originalURL string, createdAt, expiresAt time.Time) (*entity.URL, error)
	ExistsByShortCode(ctx context.Context, shortCode string) (bool, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	Remove(ctx context.Context, shortCode string) error
	RemoveIfExpired(ctx context.Context, shortCode string, now time.Time) (bool, error)
	RetrieveActive(ctx context.Context, now time.Time) ([]entity.URL, error)
	RetrieveExpired(ctx context.Context, now time.Time) ([]entity.URL, error)
	RemoveExpired(ctx context.Context, now time.Time) (int64, error)
}

// Suite runs the contract against a fresh repository for every sub test.
type Suite struct {
	suite.Suite
	// NewRepository returns an empty repository.
	NewRepository func(t testing.TB) URLRepository

	repo URLRepository
	now  time.Time
}

// Run executes the suite.
func Run(t *testing.T, newRepository func(t testing.TB) URLRepository) {
	suite.Run(t, &Suite{NewRepository: newRepository})
}

func (suite *Suite) SetupSubTest() {
	suite.repo = suite.NewRepository(suite.T())
	suite.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *Suite) save(shortCode string, expiresIn time.Duration) {
	_, err := suite.repo.Save(context.Background(), shortCode, "https://example.com/"+shortCode,
		suite.now.Add(-time.Hour), suite.now.Add(expiresIn))
	suite.Require().NoError(err)
}

func codes(urls []entity.URL) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, u.ShortCode)
	}
	return out
}

func (suite *Suite) TestSave() {
	suite.Run("success", func() {
		url, err := suite.repo.Save(context.Background(), "abc12", "https://example.com",
			suite.now, suite.now.Add(entity.DefaultTTL))

		suite.NoError(err)
		suite.Require().NotNil(url)
		suite.Equal("abc12", url.ShortCode)
		suite.Equal("https://example.com", url.OriginalURL)
		suite.True(suite.now.Equal(url.CreatedAt))
		suite.True(suite.now.Add(entity.DefaultTTL).Equal(url.ExpiresAt))
	})

	suite.Run("short code exists", func() {
		suite.save("abc12", time.Hour)

		url, err := suite.repo.Save(context.Background(), "abc12", "https://other.example.com",
			suite.now, suite.now.Add(time.Hour))

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrShortCodeExists)
		suite.Nil(url)

		stored, err := suite.repo.RetrieveByShortCode(context.Background(), "abc12")
		suite.NoError(err)
		suite.Equal("https://example.com/abc12", stored.OriginalURL)
	})

	suite.Run("concurrent inserts of one code", func() {
		const workers = 16

		var (
			wg      sync.WaitGroup
			won     atomic.Int64
			collide atomic.Int64
		)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()

				_, err := suite.repo.Save(context.Background(), "race1", fmt.Sprintf("https://example.com/%d", i),
					suite.now, suite.now.Add(time.Hour))
				switch {
				case err == nil:
					won.Add(1)
				case errors.Is(err, entity.ErrShortCodeExists):
					collide.Add(1)
				}
			}(i)
		}
		wg.Wait()

		suite.Equal(int64(1), won.Load())
		suite.Equal(int64(workers-1), collide.Load())
	})
}

func (suite *Suite) TestExistsByShortCode() {
	suite.Run("absent", func() {
		exists, err := suite.repo.ExistsByShortCode(context.Background(), "abc12")

		suite.NoError(err)
		suite.False(exists)
	})

	suite.Run("present", func() {
		suite.save("abc12", time.Hour)

		exists, err := suite.repo.ExistsByShortCode(context.Background(), "abc12")

		suite.NoError(err)
		suite.True(exists)
	})

	suite.Run("expired but not swept", func() {
		suite.save("abc12", -time.Minute)

		exists, err := suite.repo.ExistsByShortCode(context.Background(), "abc12")

		suite.NoError(err)
		suite.True(exists)
	})
}

func (suite *Suite) TestRetrieveByShortCode() {
	suite.Run("url not found", func() {
		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc12")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("expired url is still returned", func() {
		suite.save("abc12", -time.Minute)

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc12")

		suite.NoError(err)
		suite.Require().NotNil(url)
		suite.True(url.IsExpired(suite.now))
	})
}

func (suite *Suite) TestRemove() {
	suite.Run("success", func() {
		suite.save("abc12", time.Hour)

		suite.NoError(suite.repo.Remove(context.Background(), "abc12"))

		exists, err := suite.repo.ExistsByShortCode(context.Background(), "abc12")
		suite.NoError(err)
		suite.False(exists)
	})

	suite.Run("idempotent", func() {
		suite.NoError(suite.repo.Remove(context.Background(), "abc12"))
		suite.NoError(suite.repo.Remove(context.Background(), "abc12"))
	})
}

func (suite *Suite) TestRemoveIfExpired() {
	suite.Run("expired", func() {
		suite.save("gone1", -time.Minute)

		removed, err := suite.repo.RemoveIfExpired(context.Background(), "gone1", suite.now)

		suite.NoError(err)
		suite.True(removed)

		exists, err := suite.repo.ExistsByShortCode(context.Background(), "gone1")
		suite.NoError(err)
		suite.False(exists)
	})

	suite.Run("expiry boundary", func() {
		suite.save("edge0", 0)

		removed, err := suite.repo.RemoveIfExpired(context.Background(), "edge0", suite.now)

		suite.NoError(err)
		suite.True(removed)
	})

	suite.Run("active url is kept", func() {
		suite.save("abc12", time.Hour)

		removed, err := suite.repo.RemoveIfExpired(context.Background(), "abc12", suite.now)

		suite.NoError(err)
		suite.False(removed)

		exists, err := suite.repo.ExistsByShortCode(context.Background(), "abc12")
		suite.NoError(err)
		suite.True(exists)
	})

	suite.Run("reissued code is kept", func() {
		suite.save("abc12", -time.Minute)
		_, err := suite.repo.RemoveExpired(context.Background(), suite.now)
		suite.Require().NoError(err)
		suite.save("abc12", time.Hour)

		removed, err := suite.repo.RemoveIfExpired(context.Background(), "abc12", suite.now)

		suite.NoError(err)
		suite.False(removed)

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc12")
		suite.NoError(err)
		suite.False(url.IsExpired(suite.now))
	})

	suite.Run("absent url", func() {
		removed, err := suite.repo.RemoveIfExpired(context.Background(), "abc12", suite.now)

		suite.NoError(err)
		suite.False(removed)
	})
}

func (suite *Suite) TestRetrieveActiveAndExpired() {
	suite.Run("partition", func() {
		suite.save("active2", 2*time.Hour)
		suite.save("active1", time.Hour)
		suite.save("edge0", 0)
		suite.save("gone1", -time.Hour)

		active, err := suite.repo.RetrieveActive(context.Background(), suite.now)
		suite.NoError(err)
		suite.Equal([]string{"active1", "active2"}, codes(active))

		expired, err := suite.repo.RetrieveExpired(context.Background(), suite.now)
		suite.NoError(err)
		suite.Equal([]string{"gone1", "edge0"}, codes(expired))
	})

	suite.Run("empty", func() {
		active, err := suite.repo.RetrieveActive(context.Background(), suite.now)
		suite.NoError(err)
		suite.Empty(active)

		expired, err := suite.repo.RetrieveExpired(context.Background(), suite.now)
		suite.NoError(err)
		suite.Empty(expired)
	})
}

func (suite *Suite) TestRemoveExpired() {
	suite.Run("removes exactly the expired set", func() {
		suite.save("active1", time.Hour)
		suite.save("edge0", 0)
		suite.save("gone1", -time.Hour)

		activeBefore, err := suite.repo.RetrieveActive(context.Background(), suite.now)
		suite.Require().NoError(err)
		expiredBefore, err := suite.repo.RetrieveExpired(context.Background(), suite.now)
		suite.Require().NoError(err)

		n, err := suite.repo.RemoveExpired(context.Background(), suite.now)

		suite.NoError(err)
		suite.Equal(int64(len(expiredBefore)), n)

		expiredAfter, err := suite.repo.RetrieveExpired(context.Background(), suite.now)
		suite.NoError(err)
		suite.Empty(expiredAfter)

		activeAfter, err := suite.repo.RetrieveActive(context.Background(), suite.now)
		suite.NoError(err)
		suite.Equal(codes(activeBefore), codes(activeAfter))

		for _, u := range expiredBefore {
			exists, err := suite.repo.ExistsByShortCode(context.Background(), u.ShortCode)
			suite.NoError(err)
			suite.False(exists)
		}
	})

	suite.Run("nothing to remove", func() {
		suite.save("active1", time.Hour)

		n, err := suite.repo.RemoveExpired(context.Background(), suite.now)

		suite.NoError(err)
		suite.Zero(n)
	})
}

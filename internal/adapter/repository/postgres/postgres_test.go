package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

func TestIsUniqueViolationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unique violation error",
			err:  &pgconn.PgError{Code: uniqueViolationErrCode},
			want: true,
		},
		{
			name: "wrapped unique violation error",
			err:  errors.Join(errors.New("insert"), &pgconn.PgError{Code: uniqueViolationErrCode}),
			want: true,
		},
		{
			name: "not unique violation error",
			err:  &pgconn.PgError{Code: "unknown error code"},
			want: false,
		},
		{
			name: "not PgError",
			err:  errors.New("unknown error"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolationError(tt.err))
		})
	}
}

type URLRepositoryTestSuite struct {
	suite.Suite
	errUnknown      error
	errAffectedRows error
	columns         []string
	now             time.Time
	mock            sqlmock.Sqlmock
	repo            *URLRepository
}

func (suite *URLRepositoryTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.errAffectedRows = errors.New("affected rows error")
	suite.columns = []string{"short_code", "original_url", "created_at", "expires_at"}
	suite.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *URLRepositoryTestSuite) SetupSubTest() {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		suite.T().Fatalf("Failed to create mock database: %v", err)
	}
	suite.T().Cleanup(func() {
		mockDB.Close()
	})

	db := sqlx.NewDb(mockDB, "sqlmock")

	suite.mock = mock
	suite.repo = NewURLRepository(db)
}

func (suite *URLRepositoryTestSuite) TearDownSubTest() {
	suite.NoError(suite.mock.ExpectationsWereMet())
}

func (suite *URLRepositoryTestSuite) TestSave() {
	expiresAt := suite.now.Add(entity.DefaultTTL)

	suite.Run("short code exists", func() {
		suite.mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("abc12", "https://example.com", suite.now, expiresAt).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationErrCode})

		url, err := suite.repo.Save(context.Background(), "abc12", "https://example.com", suite.now, expiresAt)

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrShortCodeExists)
		suite.Nil(url)
	})

	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("abc12", "https://example.com", suite.now, expiresAt).
			WillReturnError(suite.errUnknown)

		url, err := suite.repo.Save(context.Background(), "abc12", "https://example.com", suite.now, expiresAt)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		rows := sqlmock.NewRows(suite.columns).
			AddRow("abc12", "https://example.com", suite.now, expiresAt)

		suite.mock.ExpectQuery(`INSERT INTO urls`).
			WithArgs("abc12", "https://example.com", suite.now, expiresAt).
			WillReturnRows(rows)

		url, err := suite.repo.Save(context.Background(), "abc12", "https://example.com", suite.now, expiresAt)

		suite.NoError(err)
		suite.Equal(&entity.URL{
			ShortCode:   "abc12",
			OriginalURL: "https://example.com",
			CreatedAt:   suite.now,
			ExpiresAt:   expiresAt,
		}, url)
	})
}

func (suite *URLRepositoryTestSuite) TestExistsByShortCode() {
	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("abc12").
			WillReturnError(suite.errUnknown)

		exists, err := suite.repo.ExistsByShortCode(context.Background(), "abc12")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.False(exists)
	})

	suite.Run("exists", func() {
		suite.mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("abc12").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := suite.repo.ExistsByShortCode(context.Background(), "abc12")

		suite.NoError(err)
		suite.True(exists)
	})

	suite.Run("does not exist", func() {
		suite.mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("abc12").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		exists, err := suite.repo.ExistsByShortCode(context.Background(), "abc12")

		suite.NoError(err)
		suite.False(exists)
	})
}

func (suite *URLRepositoryTestSuite) TestRetrieveByShortCode() {
	suite.Run("url not found", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM urls`).
			WithArgs("abc12").
			WillReturnError(sql.ErrNoRows)

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc12")

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(url)
	})

	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM urls`).
			WithArgs("abc12").
			WillReturnError(suite.errUnknown)

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc12")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(url)
	})

	suite.Run("success", func() {
		rows := sqlmock.NewRows(suite.columns).
			AddRow("abc12", "https://example.com", suite.now, suite.now.Add(time.Hour))

		suite.mock.ExpectQuery(`SELECT (.+) FROM urls`).
			WithArgs("abc12").
			WillReturnRows(rows)

		url, err := suite.repo.RetrieveByShortCode(context.Background(), "abc12")

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal("abc12", url.ShortCode)
		suite.Equal("https://example.com", url.OriginalURL)
		suite.Equal(suite.now.Add(time.Hour), url.ExpiresAt)
	})
}

func (suite *URLRepositoryTestSuite) TestRemove() {
	suite.Run("unknown error", func() {
		suite.mock.ExpectExec(`DELETE FROM urls`).
			WithArgs("abc12").
			WillReturnError(suite.errUnknown)

		err := suite.repo.Remove(context.Background(), "abc12")

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
	})

	suite.Run("absent url", func() {
		suite.mock.ExpectExec(`DELETE FROM urls`).
			WithArgs("abc12").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := suite.repo.Remove(context.Background(), "abc12")

		suite.NoError(err)
	})

	suite.Run("success", func() {
		suite.mock.ExpectExec(`DELETE FROM urls`).
			WithArgs("abc12").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := suite.repo.Remove(context.Background(), "abc12")

		suite.NoError(err)
	})
}

func (suite *URLRepositoryTestSuite) TestRemoveIfExpired() {
	suite.Run("unknown error", func() {
		suite.mock.ExpectExec(`DELETE FROM urls WHERE short_code = \$1 AND expires_at <= \$2`).
			WithArgs("abc12", suite.now).
			WillReturnError(suite.errUnknown)

		removed, err := suite.repo.RemoveIfExpired(context.Background(), "abc12", suite.now)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.False(removed)
	})

	suite.Run("affected rows error", func() {
		suite.mock.ExpectExec(`DELETE FROM urls WHERE short_code = \$1 AND expires_at <= \$2`).
			WithArgs("abc12", suite.now).
			WillReturnResult(sqlmock.NewErrorResult(suite.errAffectedRows))

		removed, err := suite.repo.RemoveIfExpired(context.Background(), "abc12", suite.now)

		suite.Error(err)
		suite.ErrorIs(err, suite.errAffectedRows)
		suite.False(removed)
	})

	suite.Run("not expired", func() {
		suite.mock.ExpectExec(`DELETE FROM urls WHERE short_code = \$1 AND expires_at <= \$2`).
			WithArgs("abc12", suite.now).
			WillReturnResult(sqlmock.NewResult(0, 0))

		removed, err := suite.repo.RemoveIfExpired(context.Background(), "abc12", suite.now)

		suite.NoError(err)
		suite.False(removed)
	})

	suite.Run("success", func() {
		suite.mock.ExpectExec(`DELETE FROM urls WHERE short_code = \$1 AND expires_at <= \$2`).
			WithArgs("abc12", suite.now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		removed, err := suite.repo.RemoveIfExpired(context.Background(), "abc12", suite.now)

		suite.NoError(err)
		suite.True(removed)
	})
}

func (suite *URLRepositoryTestSuite) TestRetrieveActive() {
	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM urls WHERE expires_at >`).
			WithArgs(suite.now).
			WillReturnError(suite.errUnknown)

		urls, err := suite.repo.RetrieveActive(context.Background(), suite.now)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(urls)
	})

	suite.Run("success", func() {
		rows := sqlmock.NewRows(suite.columns).
			AddRow("abc12", "https://example.com/1", suite.now, suite.now.Add(time.Minute)).
			AddRow("xyz789", "https://example.com/2", suite.now, suite.now.Add(time.Hour))

		suite.mock.ExpectQuery(`SELECT (.+) FROM urls WHERE expires_at >`).
			WithArgs(suite.now).
			WillReturnRows(rows)

		urls, err := suite.repo.RetrieveActive(context.Background(), suite.now)

		suite.NoError(err)
		suite.Len(urls, 2)
		suite.Equal("abc12", urls[0].ShortCode)
		suite.Equal("xyz789", urls[1].ShortCode)
	})

	suite.Run("empty", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM urls WHERE expires_at >`).
			WithArgs(suite.now).
			WillReturnRows(sqlmock.NewRows(suite.columns))

		urls, err := suite.repo.RetrieveActive(context.Background(), suite.now)

		suite.NoError(err)
		suite.NotNil(urls)
		suite.Empty(urls)
	})
}

func (suite *URLRepositoryTestSuite) TestRetrieveExpired() {
	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM urls WHERE expires_at <=`).
			WithArgs(suite.now).
			WillReturnError(suite.errUnknown)

		urls, err := suite.repo.RetrieveExpired(context.Background(), suite.now)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(urls)
	})

	suite.Run("success", func() {
		rows := sqlmock.NewRows(suite.columns).
			AddRow("abc12", "https://example.com", suite.now.Add(-3*time.Hour), suite.now.Add(-time.Hour))

		suite.mock.ExpectQuery(`SELECT (.+) FROM urls WHERE expires_at <=`).
			WithArgs(suite.now).
			WillReturnRows(rows)

		urls, err := suite.repo.RetrieveExpired(context.Background(), suite.now)

		suite.NoError(err)
		suite.Len(urls, 1)
		suite.True(urls[0].IsExpired(suite.now))
	})
}

func (suite *URLRepositoryTestSuite) TestRemoveExpired() {
	suite.Run("unknown error", func() {
		suite.mock.ExpectExec(`DELETE FROM urls WHERE expires_at <=`).
			WithArgs(suite.now).
			WillReturnError(suite.errUnknown)

		n, err := suite.repo.RemoveExpired(context.Background(), suite.now)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Zero(n)
	})

	suite.Run("rows affected error", func() {
		suite.mock.ExpectExec(`DELETE FROM urls WHERE expires_at <=`).
			WithArgs(suite.now).
			WillReturnResult(sqlmock.NewErrorResult(suite.errAffectedRows))

		n, err := suite.repo.RemoveExpired(context.Background(), suite.now)

		suite.Error(err)
		suite.ErrorIs(err, suite.errAffectedRows)
		suite.Zero(n)
	})

	suite.Run("success", func() {
		suite.mock.ExpectExec(`DELETE FROM urls WHERE expires_at <=`).
			WithArgs(suite.now).
			WillReturnResult(sqlmock.NewResult(0, 3))

		n, err := suite.repo.RemoveExpired(context.Background(), suite.now)

		suite.NoError(err)
		suite.Equal(int64(3), n)
	})
}

func TestURLRepository(t *testing.T) {
	suite.Run(t, new(URLRepositoryTestSuite))
}

package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"cookbook/internal/domain/entity"
	domainerrors "cookbook/internal/domain/errors"
	"cookbook/internal/domain/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(gormpg.New(gormpg.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)

	return db, mock
}

var userColumns = []string{"id", "email", "name", "password_hash", "refresh_token_hash", "created_at", "updated_at"}

func TestUserRepository_FindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(id.String(), "alice@example.com", "Alice", "pw-hash", "rt-hash", now, now))

	user, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "pw-hash", user.PasswordHash)
	require.NotNil(t, user.RefreshTokenHash)
	assert.Equal(t, "rt-hash", *user.RefreshTokenHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByID_NullRefreshHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(id.String(), "alice@example.com", "Alice", "pw-hash", nil, now, now))

	user, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, user.RefreshTokenHash)
	assert.False(t, user.HasActiveSession())
}

func TestUserRepository_FindByEmail_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).
		WillReturnRows(sqlmock.NewRows(userColumns))

	user, err := repo.FindByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	assert.Nil(t, user)
}

func TestUserRepository_Create_AssignsID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &entity.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "pw-hash"}
	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, uuid.Version(7), user.ID.Version())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: pgCodeUniqueViolation, ConstraintName: usersEmailConstraint})

	err := repo.Create(context.Background(), &entity.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "pw-hash"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrUserAlreadyExists)
}

func TestUserRepository_Create_DatabaseError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: "08006"})

	err := repo.Create(context.Background(), &entity.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "pw-hash"})
	require.Error(t, err)
	assert.False(t, domainerrors.HasCode(err, domainerrors.ErrUserAlreadyExists))

	appErr, ok := domainerrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "DATABASE_EXECUTE_FAILED", appErr.ErrorCode())
}

func TestUserRepository_Update_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &entity.User{ID: uuid.New(), Name: "Alice", Email: "a@example.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepository_UpdateRefreshTokenHash_Clear(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	id := uuid.New()
	mock.ExpectExec(`UPDATE "users" SET "refresh_token_hash"=.* WHERE id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Zero rows (unknown user) is not an error.
	err := repo.UpdateRefreshTokenHash(context.Background(), id, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RotateRefreshTokenHash(t *testing.T) {
	id := uuid.New()

	t.Run("swaps when expected matches", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`UPDATE "users" SET "refresh_token_hash"=\$1.* WHERE id = \$\d+ AND refresh_token_hash = \$\d+`).
			WithArgs("next", sqlmock.AnyArg(), id.String(), "expected").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.RotateRefreshTokenHash(context.Background(), id, "expected", "next")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale when another writer won", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`UPDATE "users" SET "refresh_token_hash"=\$1.* WHERE id = \$\d+ AND refresh_token_hash = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.RotateRefreshTokenHash(context.Background(), id, "expected", "next")
		assert.ErrorIs(t, err, repository.ErrRefreshTokenStale)
	})
}

func TestUserRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "users" WHERE id = $1`)).
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "users" WHERE id = $1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), id))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), repository.ErrUserNotFound)
}

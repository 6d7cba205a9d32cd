package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/localgov/asset-tracker-auth/internal/utils"
)

func testHandle() TableHandle {
	return TableHandle{
		Name: "users",
		Col: UserColumns{
			ID:                 "id",
			Username:           "username",
			Email:              "email",
			PasswordHash:       "password_hash",
			Role:               "role",
			IsActive:           "is_active",
			CreatedAt:          "created_at",
			LastLogin:          "last_login",
			Token:              "Token",
			RefreshToken:       "RefreshToken",
			TokenExpiry:        "TokenExpiry",
			RefreshTokenExpiry: "RefreshTokenExpiry",
			LastActivity:       "LastActivity",
		},
	}
}

func setupUserRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *UserRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewUserRepo(db, testHandle())
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash",
		"role", "is_active", "created_at", "last_login",
	})
}

func TestFindByIdentifier_MatchesUsernameOrEmail(t *testing.T) {
	db, mock, repo := setupUserRepo(t)
	defer db.Close()

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := userRows().
		AddRow(7, "admin", "admin@localgov.com", "x", "Admin", true, created, nil)

	mock.ExpectQuery("WHERE BINARY `username` = \\? OR BINARY `email` = \\? LIMIT 2").
		WithArgs("admin@localgov.com", "admin@localgov.com").
		WillReturnRows(rows)

	u, err := repo.FindByIdentifier(context.Background(), "admin@localgov.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), u.ID)
	assert.Equal(t, "admin", u.Username)
	assert.Equal(t, "Admin", u.Role)
	assert.True(t, u.IsActive)
	assert.Nil(t, u.LastLogin)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIdentifier_NotFound(t *testing.T) {
	db, mock, repo := setupUserRepo(t)
	defer db.Close()

	mock.ExpectQuery("WHERE BINARY").
		WithArgs("ghost", "ghost").
		WillReturnRows(userRows())

	_, err := repo.FindByIdentifier(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIdentifier_AmbiguousFailsLoudly(t *testing.T) {
	db, mock, repo := setupUserRepo(t)
	defer db.Close()

	created := time.Now().UTC()
	rows := userRows().
		AddRow(1, "pat", "pat@localgov.com", "x", "Admin", true, created, nil).
		AddRow(2, "other", "pat", "y", "AssetManager", true, created, nil)

	mock.ExpectQuery("WHERE BINARY").
		WithArgs("pat", "pat").
		WillReturnRows(rows)

	_, err := repo.FindByIdentifier(context.Background(), "pat")
	assert.ErrorIs(t, err, ErrAmbiguousIdentifier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock, repo := setupUserRepo(t)
	defer db.Close()

	mock.ExpectQuery("WHERE `id` = \\? LIMIT 1").
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_WritesModernHashOnly(t *testing.T) {
	db, mock, repo := setupUserRepo(t)
	defer db.Close()

	var storedHash string
	mock.ExpectExec("INSERT INTO `users`").
		WithArgs("dana", "dana@localgov.com", sqlmock.AnyArg(), "AssetManager").
		WillReturnResult(sqlmock.NewResult(11, 1))

	id, err := repo.Create(context.Background(), "dana", "dana@localgov.com", "s3cret-pw", "AssetManager", bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())

	// The hash constructor itself must only be able to produce bcrypt.
	storedHash, err = utils.HashPassword("s3cret-pw", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, 32, len(storedHash))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHash), []byte("s3cret-pw")))
}

func TestCreate_DuplicateUser(t *testing.T) {
	db, mock, repo := setupUserRepo(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO `users`").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := repo.Create(context.Background(), "dana", "dana@localgov.com", "pw", "Admin", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrDuplicateUser)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePassword_UnknownUser(t *testing.T) {
	db, mock, repo := setupUserRepo(t)
	defer db.Close()

	mock.ExpectExec("UPDATE `users` SET `password_hash`").
		WithArgs(sqlmock.AnyArg(), 42).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), 42, "newpassword", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/localgov/asset-tracker-auth/internal/config"
	"github.com/localgov/asset-tracker-auth/internal/repository"
)

func testHandle() repository.TableHandle {
	return repository.TableHandle{
		Name: "users",
		Col: repository.UserColumns{
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

func setupAuth(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AuthHandler) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	handle := testHandle()
	cfg := config.Config{AccessTTLMin: 60, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}
	h := NewAuthHandler(cfg,
		repository.NewUserRepo(db, handle),
		repository.NewTokenRepo(db, handle),
		zap.NewNop())
	return db, mock, h
}

func doJSON(t *testing.T, handler echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash",
		"role", "is_active", "created_at", "last_login",
	})
}

func mysqlDuplicate() error {
	return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(b)
}

func TestLogin_Success(t *testing.T) {
	db, mock, h := setupAuth(t)
	defer db.Close()

	hash := mustHash(t, "password")
	mock.ExpectQuery("WHERE BINARY `username` = \\? OR BINARY `email` = \\?").
		WithArgs("admin@localgov.com", "admin@localgov.com").
		WillReturnRows(userRows().AddRow(7, "admin", "admin@localgov.com", hash, "Admin", true, time.Now().UTC(), nil))
	mock.ExpectExec("UPDATE `users` SET `Token`").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(t, h.Login, `{"identifier":"admin@localgov.com","password":"password"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(7), data["UserID"])
	assert.Equal(t, "admin", data["Username"])
	assert.Equal(t, "admin@localgov.com", data["Email"])
	assert.Equal(t, "Admin", data["Role"])
	assert.Len(t, data["accessToken"], 64)
	assert.Len(t, data["refreshToken"], 64)
	assert.NotEqual(t, data["accessToken"], data["refreshToken"])

	accessExp, err := time.Parse(time.RFC3339Nano, data["accessTokenExpiry"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), accessExp, time.Minute)

	refreshExp, err := time.Parse(time.RFC3339Nano, data["refreshTokenExpiry"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), refreshExp, time.Minute)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// Unknown identifier and wrong password must be indistinguishable from the
// outside: same status code, same body.
func TestLogin_NoCredentialOracle(t *testing.T) {
	db, mock, h := setupAuth(t)
	defer db.Close()

	mock.ExpectQuery("WHERE BINARY").
		WithArgs("ghost", "ghost").
		WillReturnRows(userRows())
	recUnknown := doJSON(t, h.Login, `{"identifier":"ghost","password":"whatever"}`)

	mock.ExpectQuery("WHERE BINARY").
		WithArgs("admin", "admin").
		WillReturnRows(userRows().AddRow(7, "admin", "admin@localgov.com", mustHash(t, "password"), "Admin", true, time.Now().UTC(), nil))
	recWrongPw := doJSON(t, h.Login, `{"identifier":"admin","password":"not-it"}`)

	assert.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	assert.Equal(t, http.StatusUnauthorized, recWrongPw.Code)
	assert.JSONEq(t, recUnknown.Body.String(), recWrongPw.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_InactiveAccount(t *testing.T) {
	db, mock, h := setupAuth(t)
	defer db.Close()

	mock.ExpectQuery("WHERE BINARY").
		WithArgs("retired", "retired").
		WillReturnRows(userRows().AddRow(9, "retired", "retired@localgov.com", mustHash(t, "password"), "AssetManager", false, time.Now().UTC(), nil))

	rec := doJSON(t, h.Login, `{"identifier":"retired","password":"password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decodeBody(t, rec)["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_MissingFields(t *testing.T) {
	db, _, h := setupAuth(t)
	defer db.Close()

	rec := doJSON(t, h.Login, `{"identifier":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", decodeBody(t, rec)["status"])
}

func TestLogin_AmbiguousIdentifierIsServerError(t *testing.T) {
	db, mock, h := setupAuth(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("WHERE BINARY").
		WithArgs("pat", "pat").
		WillReturnRows(userRows().
			AddRow(1, "pat", "pat@localgov.com", "x", "Admin", true, now, nil).
			AddRow(2, "other", "pat", "y", "Admin", true, now, nil))

	rec := doJSON(t, h.Login, `{"identifier":"pat","password":"pw"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeBody(t, rec)["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_Success(t *testing.T) {
	db, mock, h := setupAuth(t)
	defer db.Close()

	mock.ExpectQuery("WHERE `RefreshToken` = \\? AND `RefreshTokenExpiry` > \\?").
		WithArgs("still-good", sqlmock.AnyArg()).
		WillReturnRows(userRows().AddRow(5, "dana", "dana@localgov.com", "hash", "AssetManager", true, time.Now().UTC(), nil))
	mock.ExpectExec("UPDATE `users` SET `Token`").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(t, h.Refresh, `{"refreshToken":"still-good"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	data, ok := decodeBody(t, rec)["data"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, data["accessToken"], 64)
	assert.Len(t, data["refreshToken"], 64)
	assert.NotEqual(t, "still-good", data["refreshToken"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

// An expired or already-rotated refresh token is rejected and nothing is
// written: ExpectationsWereMet proves no UPDATE was attempted.
func TestRefresh_ExpiredTokenIssuesNothing(t *testing.T) {
	db, mock, h := setupAuth(t)
	defer db.Close()

	mock.ExpectQuery("WHERE `RefreshToken` = \\? AND `RefreshTokenExpiry` > \\?").
		WithArgs("superseded", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	rec := doJSON(t, h.Refresh, `{"refreshToken":"superseded"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired refresh token", decodeBody(t, rec)["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_MissingToken(t *testing.T) {
	db, _, h := setupAuth(t)
	defer db.Close()

	rec := doJSON(t, h.Refresh, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_DuplicateUser(t *testing.T) {
	db, mock, h := setupAuth(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO `users`").
		WillReturnError(mysqlDuplicate())

	rec := doJSON(t, h.Register, `{"username":"dana","email":"dana@localgov.com","password":"s3cret-pw"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_DefaultsRoleAndIssuesTokens(t *testing.T) {
	db, mock, h := setupAuth(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO `users`").
		WithArgs("dana", "dana@localgov.com", sqlmock.AnyArg(), "AssetManager").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec("UPDATE `users` SET `Token`").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(t, h.Register, `{"username":"dana","email":"dana@localgov.com","password":"s3cret-pw","role":"Mayor"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	data, ok := decodeBody(t, rec)["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(11), data["UserID"])
	assert.Equal(t, "AssetManager", data["Role"])
	assert.Len(t, data["accessToken"], 64)
	assert.NoError(t, mock.ExpectationsWereMet())
}

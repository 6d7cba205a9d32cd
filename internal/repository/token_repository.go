package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/localgov/asset-tracker-auth/internal/model"
)

// TokenRepo owns the session columns on the user row. Issuance and rotation
// overwrite all four columns in a single UPDATE, which is what enforces the
// one-live-pair-per-user rule: the previous pair simply stops matching.
type TokenRepo struct {
	DB    *sql.DB
	Table TableHandle
}

func NewTokenRepo(db *sql.DB, table TableHandle) *TokenRepo {
	return &TokenRepo{DB: db, Table: table}
}

// StorePair persists a freshly minted pair against the user row, replacing
// whatever was there, and stamps last_login. This is the only write path
// for token fields besides Revoke.
func (r *TokenRepo) StorePair(ctx context.Context, userID uint64, pair model.TokenPair) error {
	c := r.Table.Col
	query := fmt.Sprintf(
		"UPDATE %s SET %s = ?, %s = ?, %s = ?, %s = ?, %s = ? WHERE %s = ?",
		q(r.Table.Name),
		q(c.Token), q(c.TokenExpiry), q(c.RefreshToken), q(c.RefreshTokenExpiry),
		q(c.LastLogin), q(c.ID))
	res, err := r.DB.ExecContext(ctx, query,
		pair.AccessToken, pair.AccessTokenExpiry,
		pair.RefreshToken, pair.RefreshTokenExpiry,
		time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByAccessToken resolves a bearer token to its principal. Rejections are
// distinguished internally (invalid vs expired vs inactive) but callers must
// collapse them to one external message. The lookup hits the unique index
// created by EnsureTokenColumns, so it is O(1) against the store.
func (r *TokenRepo) FindByAccessToken(ctx context.Context, token string) (model.Principal, error) {
	c := r.Table.Col
	query := fmt.Sprintf(
		"SELECT %s, %s, %s, %s, %s FROM %s WHERE %s = ? LIMIT 1",
		q(c.ID), q(c.Username), q(c.Role), q(c.IsActive), q(c.TokenExpiry),
		q(r.Table.Name), q(c.Token))

	var (
		p        model.Principal
		isActive bool
		expiry   sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, token).
		Scan(&p.UserID, &p.Username, &p.Role, &isActive, &expiry)
	if err == sql.ErrNoRows {
		return model.Principal{}, ErrTokenInvalid
	}
	if err != nil {
		return model.Principal{}, err
	}
	// expiry == now counts as expired; a NULL expiry means the pair was
	// revoked mid-flight and the token no longer represents a session.
	if !expiry.Valid || !expiry.Time.After(time.Now().UTC()) {
		return model.Principal{}, ErrTokenExpired
	}
	if !isActive {
		return model.Principal{}, ErrAccountInactive
	}
	return p, nil
}

// FindUserByRefreshToken returns the owner of a refresh token that is still
// inside its validity window. Expiry is part of the predicate, so an expired
// or already-rotated token is indistinguishable from an unknown one.
func (r *TokenRepo) FindUserByRefreshToken(ctx context.Context, token string) (model.User, error) {
	c := r.Table.Col
	query := fmt.Sprintf(
		"SELECT %s, %s, %s, %s, %s, %s, %s, %s FROM %s WHERE %s = ? AND %s > ? LIMIT 1",
		q(c.ID), q(c.Username), q(c.Email), q(c.PasswordHash),
		q(c.Role), q(c.IsActive), q(c.CreatedAt), q(c.LastLogin),
		q(r.Table.Name), q(c.RefreshToken), q(c.RefreshTokenExpiry))
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, token, time.Now().UTC()))
	if err == sql.ErrNoRows {
		return model.User{}, ErrTokenInvalid
	}
	return u, err
}

// Revoke nulls the whole pair, returning the user to the no-session state.
// Revoking a user with no live pair is a no-op, not an error.
func (r *TokenRepo) Revoke(ctx context.Context, userID uint64) error {
	c := r.Table.Col
	query := fmt.Sprintf(
		"UPDATE %s SET %s = NULL, %s = NULL, %s = NULL, %s = NULL WHERE %s = ?",
		q(r.Table.Name),
		q(c.Token), q(c.TokenExpiry), q(c.RefreshToken), q(c.RefreshTokenExpiry),
		q(c.ID))
	_, err := r.DB.ExecContext(ctx, query, userID)
	return err
}

// TouchLastActivity stamps the activity column. Verification treats a
// failure here as log-only; it must never fail the request.
func (r *TokenRepo) TouchLastActivity(ctx context.Context, userID uint64) error {
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
		q(r.Table.Name), q(r.Table.Col.LastActivity), q(r.Table.Col.ID))
	_, err := r.DB.ExecContext(ctx, query, time.Now().UTC(), userID)
	return err
}

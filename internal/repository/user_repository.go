package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/localgov/asset-tracker-auth/internal/model"
	"github.com/localgov/asset-tracker-auth/internal/utils"
)

// UserRepo is the credential store adapter. Every query is built from the
// resolved TableHandle, so the repo works unchanged against either legacy
// table variant.
type UserRepo struct {
	DB    *sql.DB
	Table TableHandle
}

func NewUserRepo(db *sql.DB, table TableHandle) *UserRepo {
	return &UserRepo{DB: db, Table: table}
}

// selectList returns the identity columns in the fixed scan order used by
// scanUser.
func (r *UserRepo) selectList() string {
	c := r.Table.Col
	return strings.Join([]string{
		q(c.ID), q(c.Username), q(c.Email), q(c.PasswordHash),
		q(c.Role), q(c.IsActive), q(c.CreatedAt), q(c.LastLogin),
	}, ",")
}

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.Role, &u.IsActive, &u.CreatedAt, &lastLogin)
	if err != nil {
		return model.User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

// FindByIdentifier fetches the single user whose username or email equals
// identifier, byte-for-byte. The default MySQL collation folds case, so the
// comparison is forced BINARY. Two matching rows would mean the uniqueness
// constraints upstream have been violated; that case fails loudly rather
// than returning an arbitrary row.
func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	c := r.Table.Col
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE BINARY %s = ? OR BINARY %s = ? LIMIT 2",
		r.selectList(), q(r.Table.Name), q(c.Username), q(c.Email))

	rows, err := r.DB.QueryContext(ctx, query, identifier, identifier)
	if err != nil {
		return model.User{}, err
	}
	defer rows.Close()

	var (
		u     model.User
		count int
	)
	for rows.Next() {
		count++
		if count > 1 {
			return model.User{}, fmt.Errorf("%w: %q", ErrAmbiguousIdentifier, identifier)
		}
		if u, err = scanUser(rows); err != nil {
			return model.User{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return model.User{}, err
	}
	if count == 0 {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1",
		r.selectList(), q(r.Table.Name), q(r.Table.Col.ID))
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// Create inserts a new user and returns its ID. The password is always
// stored under the modern scheme; there is no code path that writes a
// legacy digest.
func (r *UserRepo) Create(ctx context.Context, username, email, password, role string, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	c := r.Table.Col
	query := fmt.Sprintf("INSERT INTO %s (%s,%s,%s,%s,%s) VALUES (?,?,?,?,1)",
		q(r.Table.Name), q(c.Username), q(c.Email), q(c.PasswordHash), q(c.Role), q(c.IsActive))
	res, err := r.DB.ExecContext(ctx, query, username, email, hash, role)
	if err != nil {
		if isMySQLErr(err, mysqlErrDuplicateEntry) {
			return 0, ErrDuplicateUser
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// UpdatePassword replaces the stored hash with a modern one. Used by the
// change-password flow, which is also how legacy digests get retired.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
		q(r.Table.Name), q(r.Table.Col.PasswordHash), q(r.Table.Col.ID))
	res, err := r.DB.ExecContext(ctx, query, hash, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

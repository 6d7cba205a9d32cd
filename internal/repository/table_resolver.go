package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// TableHandle identifies the live user table and the physical name of every
// column this subsystem touches. The legacy store accumulated two parallel
// table names (`users` and `Users`) with inconsistent column casing, so the
// handle is resolved once at startup and every query is built from it —
// no other code mentions a physical name.
type TableHandle struct {
	Name string
	Col  UserColumns
}

// UserColumns maps the logical columns onto whatever the live table calls
// them. Token, RefreshToken, TokenExpiry, RefreshTokenExpiry and
// LastActivity may be absent on a fresh legacy table; EnsureTokenColumns
// adds them under these exact names.
type UserColumns struct {
	ID                 string
	Username           string
	Email              string
	PasswordHash       string
	Role               string
	IsActive           string
	CreatedAt          string
	LastLogin          string
	Token              string
	RefreshToken       string
	TokenExpiry        string
	RefreshTokenExpiry string
	LastActivity       string
}

// q wraps an identifier in backticks for interpolation into SQL. Handles are
// resolved from information_schema at startup, never from request input.
func q(ident string) string { return "`" + ident + "`" }

// candidate physical names per logical column, in preference order. The
// first entry is also the name created when the column has to be added.
var columnCandidates = map[string][]string{
	"id":         {"id", "ID", "UserID", "user_id"},
	"username":   {"username", "Username", "user_name"},
	"email":      {"email", "Email"},
	"password":   {"password_hash", "password", "Password", "PasswordHash"},
	"role":       {"role", "Role"},
	"is_active":  {"is_active", "IsActive", "active"},
	"created_at": {"created_at", "CreatedAt"},
	"last_login": {"last_login", "LastLogin"},
}

// token-related columns keep their historical names regardless of which
// casing variant the identity columns use; both the mobile client and the
// reporting scripts address them verbatim.
const (
	colToken              = "Token"
	colRefreshToken       = "RefreshToken"
	colTokenExpiry        = "TokenExpiry"
	colRefreshTokenExpiry = "RefreshTokenExpiry"
	colLastActivity       = "LastActivity"
)

// ResolveUserTable probes the store for the active user-table variant and
// returns a handle the rest of the subsystem queries through. It checks for
// a lower-case `users` table first and falls back to `Users`; if neither
// exists the store is unusable and ErrSchema is returned. The probe is two
// cheap information_schema lookups, safe to run at every startup.
func ResolveUserTable(ctx context.Context, db *sql.DB) (TableHandle, error) {
	name, err := probeTableName(ctx, db)
	if err != nil {
		return TableHandle{}, err
	}

	actual, err := listColumns(ctx, db, name)
	if err != nil {
		return TableHandle{}, fmt.Errorf("list columns of %s: %w", name, err)
	}

	cols := UserColumns{
		Token:              pick(actual, colToken),
		RefreshToken:       pick(actual, colRefreshToken),
		TokenExpiry:        pick(actual, colTokenExpiry),
		RefreshTokenExpiry: pick(actual, colRefreshTokenExpiry),
		LastActivity:       pick(actual, colLastActivity),
	}
	required := []struct {
		logical string
		dst     *string
	}{
		{"id", &cols.ID},
		{"username", &cols.Username},
		{"email", &cols.Email},
		{"password", &cols.PasswordHash},
		{"role", &cols.Role},
		{"is_active", &cols.IsActive},
		{"created_at", &cols.CreatedAt},
		{"last_login", &cols.LastLogin},
	}
	for _, r := range required {
		for _, cand := range columnCandidates[r.logical] {
			if name, ok := actual[strings.ToLower(cand)]; ok {
				*r.dst = name
				break
			}
		}
		if *r.dst == "" {
			return TableHandle{}, fmt.Errorf("%w: table %s has no %s column", ErrSchema, name, r.logical)
		}
	}

	return TableHandle{Name: name, Col: cols}, nil
}

func probeTableName(ctx context.Context, db *sql.DB) (string, error) {
	for _, candidate := range []string{"users", "Users"} {
		var found string
		err := db.QueryRowContext(ctx,
			"SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND BINARY table_name = ? LIMIT 1",
			candidate).Scan(&found)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("probe table %s: %w", candidate, err)
		}
		return found, nil
	}
	return "", fmt.Errorf("%w: neither users nor Users table exists", ErrSchema)
}

// listColumns returns a lowercase-name -> physical-name map for the table.
func listColumns(ctx context.Context, db *sql.DB, table string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT column_name FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ?",
		table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actual := make(map[string]string)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		actual[strings.ToLower(name)] = name
	}
	return actual, rows.Err()
}

// pick returns the physical name for def if the table already has it under
// any casing, otherwise def itself (the name EnsureTokenColumns will create).
func pick(actual map[string]string, def string) string {
	if name, ok := actual[strings.ToLower(def)]; ok {
		return name
	}
	return def
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQL error numbers the guard treats as "someone else got there first".
const (
	mysqlErrDuplicateColumn = 1060
	mysqlErrDuplicateKey    = 1061
	mysqlErrDuplicateEntry  = 1062
)

// tokenColumnDefs lists the session columns this subsystem owns, with the
// DDL used when one is missing. All are nullable: NULL means no live token.
var tokenColumnDefs = []struct {
	name string
	ddl  string
}{
	{colToken, "VARCHAR(128) NULL"},
	{colRefreshToken, "VARCHAR(128) NULL"},
	{colTokenExpiry, "DATETIME NULL"},
	{colRefreshTokenExpiry, "DATETIME NULL"},
	{colLastActivity, "DATETIME NULL"},
}

// EnsureTokenColumns adds the session columns to the resolved table when
// they are absent, plus a unique index on the access-token column so that
// per-request verification is an index lookup rather than a scan. It is
// idempotent and tolerates concurrent invocation: a duplicate-column or
// duplicate-key error from a racing caller counts as success.
//
// Run this once at startup. The legacy system ran it inside every login
// request; schema mutation does not belong on a request path.
func EnsureTokenColumns(ctx context.Context, db *sql.DB, table TableHandle) error {
	existing, err := listColumns(ctx, db, table.Name)
	if err != nil {
		return fmt.Errorf("%w: inspect %s: %v", ErrSchema, table.Name, err)
	}

	for _, def := range tokenColumnDefs {
		if _, ok := existing[strings.ToLower(def.name)]; ok {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", q(table.Name), q(def.name), def.ddl)
		if _, err := db.ExecContext(ctx, stmt); err != nil && !isMySQLErr(err, mysqlErrDuplicateColumn) {
			return fmt.Errorf("%w: add column %s: %v", ErrSchema, def.name, err)
		}
	}

	if err := ensureTokenIndex(ctx, db, table); err != nil {
		return err
	}
	return nil
}

// ensureTokenIndex creates the unique access-token index when missing.
func ensureTokenIndex(ctx context.Context, db *sql.DB, table TableHandle) error {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?",
		table.Name, "idx_token").Scan(&n)
	if err != nil {
		return fmt.Errorf("%w: inspect indexes of %s: %v", ErrSchema, table.Name, err)
	}
	if n > 0 {
		return nil
	}
	stmt := fmt.Sprintf("CREATE UNIQUE INDEX idx_token ON %s (%s)", q(table.Name), q(table.Col.Token))
	if _, err := db.ExecContext(ctx, stmt); err != nil && !isMySQLErr(err, mysqlErrDuplicateKey) {
		return fmt.Errorf("%w: create token index: %v", ErrSchema, err)
	}
	return nil
}

func isMySQLErr(err error, number uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == number
}

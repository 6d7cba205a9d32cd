// Package repository defines the error taxonomy shared by the credential
// store adapter and the token repositories. Handlers translate these
// sentinels into HTTP responses; the mapping deliberately collapses several
// of them into the same external message so that responses never reveal
// whether an account exists or which check rejected a token.
package repository

import "errors"

// ErrSchema is returned when the user table cannot be resolved or a required
// column is missing and cannot be added. Handlers translate this into an
// HTTP 500; it indicates operator attention is needed, not a bad request.
var ErrSchema = errors.New("user schema unavailable")

// ErrNotFound is returned when no user row matches the given identifier.
// Login handlers must surface it as the same 401 used for a wrong password.
var ErrNotFound = errors.New("user not found")

// ErrAmbiguousIdentifier is returned when more than one row matches a login
// identifier. Uniqueness is enforced upstream, so two matches mean the data
// is corrupt; the lookup fails loudly instead of picking a row silently.
var ErrAmbiguousIdentifier = errors.New("identifier matches multiple users")

// ErrDuplicateUser is returned when registration collides with an existing
// username or email. Handlers translate this into an HTTP 409.
var ErrDuplicateUser = errors.New("username or email already exists")

// ErrTokenInvalid is returned when no session matches the presented token.
var ErrTokenInvalid = errors.New("token invalid")

// ErrTokenExpired is returned when the matching token's expiry has elapsed.
// Expiry is a closed interval on the expired side: expiry == now rejects.
var ErrTokenExpired = errors.New("token expired")

// ErrAccountInactive is returned when the token is valid but the owning
// account has been deactivated.
var ErrAccountInactive = errors.New("account inactive")

package model

import "time"

// Role names recognised by the service.  The legacy data stores roles as
// free-form strings; these three are the only values the mobile client ever
// sends, so they are treated as the closed set.
const (
	RoleAdmin           = "Admin"
	RoleAssetManager    = "AssetManager"
	RoleMaintenanceTeam = "MaintenanceTeam"
)

// User represents an identity and credential record on the resolved user
// table.  Column names are not fixed at compile time — the live table may be
// `users` or `Users` with either snake_case or PascalCase columns — so the
// repository layer maps whichever variant is active onto this struct.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login name.
//	Email        – unique email address; interchangeable with Username at login.
//	PasswordHash – opaque stored hash (legacy MD5 digest or bcrypt).
//	Role         – role string (Admin | AssetManager | MaintenanceTeam).
//	IsActive     – whether the account may authenticate.
//	CreatedAt    – timestamp of creation.
//	LastLogin    – last successful token issuance (nil before first login).
type User struct {
	ID           uint64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// TokenPair holds one live access/refresh token pair together with both
// expiry horizons.  A user owns at most one pair at a time; issuing a new
// pair overwrites the previous one in place, which is what keeps the
// single-active-session invariant without any extra bookkeeping.
//
// Fields:
//
//	AccessToken        – short-lived opaque bearer credential.
//	AccessTokenExpiry  – when the access token stops validating.
//	RefreshToken       – long-lived opaque rotation credential.
//	RefreshTokenExpiry – when the refresh token stops validating.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// Principal is the authenticated identity handed to protected handlers after
// successful token verification.
type Principal struct {
	UserID   uint64
	Username string
	Role     string
}

// IsAdmin reports whether the principal carries the Admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into an audit trail.
package queue

// Audit event types published by the auth handlers.
const (
	EventLogin          = "user.login"
	EventRefresh        = "token.refresh"
	EventLogout         = "user.logout"
	EventPasswordChange = "password.change"
)

// AuthEvent is published after every successful auth state change. It
// carries enough for downstream consumers to log or alert without querying
// the primary database. Failed attempts are deliberately not published; the
// rate limiter and server logs cover those.
type AuthEvent struct {
	Type       string `json:"type"`
	UserID     uint64 `json:"user_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	RemoteIP   string `json:"remote_ip"`
	OccurredAt string `json:"occurred_at"`
}

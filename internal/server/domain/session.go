package domain

import "time"

// Session is a time-bounded authorization credential issued after a
// successful second-factor verification. The raw token is handed to the
// client once and only its fingerprint is stored. Sessions are never
// extended; a new login replaces any prior session for the username.
type Session struct {
	ID        string // ULID
	Username  string
	TokenHash string // SHA-256 fingerprint of the opaque token
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at the given
// instant. A session is valid strictly during [IssuedAt, ExpiresAt).
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

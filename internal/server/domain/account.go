package domain

import "time"

// MFAMode is the enrollment state of an account's second factor. Exactly one
// mode holds at any instant; a pending candidate secret and an enrolled
// secret can never coexist.
type MFAMode string

const (
	MFAUnenrolled MFAMode = "unenrolled"
	MFAPending    MFAMode = "pending"
	MFAEnrolled   MFAMode = "enrolled"
)

// MFAState is the tagged second-factor state for an account.
type MFAState struct {
	Mode MFAMode

	// Secret is the committed TOTP secret (base32). Set iff Mode == MFAEnrolled.
	Secret string

	// PendingSecret is the candidate TOTP secret awaiting confirmation.
	// Set iff Mode == MFAPending.
	PendingSecret string

	// PendingIssuedAt records when the candidate secret was generated, so
	// abandoned enrollments can be expired.
	PendingIssuedAt time.Time
}

type Account struct {
	ID           string
	Username     string
	PasswordHash string // argon2 encoded, never logged or echoed
	MFA          MFAState

	FailedAttempts int
	LockedUntil    *time.Time // nil when the account is open

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Locked reports whether the account is under a lockout at the given instant.
// The lock clears by the passage of time alone; there is no explicit unlock.
func (a Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

package domain

// LoginNext tells the client which second-factor step follows a successful
// password check.
type LoginNext string

const (
	// LoginNextEnroll means MFA has not been set up; the client must confirm
	// enrollment with a code derived from the returned secret.
	LoginNextEnroll LoginNext = "mfa_setup_required"

	// LoginNextVerify means MFA is enrolled; the client must present a code
	// from its authenticator.
	LoginNextVerify LoginNext = "mfa_required"
)

// LoginResult is returned when a password is accepted.
type LoginResult struct {
	Next LoginNext

	// TOTPSecret and OtpauthURL are set only when Next == LoginNextEnroll.
	// Echoing the secret here is required for enrollment UX.
	TOTPSecret string
	OtpauthURL string
}

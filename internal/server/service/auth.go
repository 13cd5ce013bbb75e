package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/halcyonlabs/vaultgate/internal/server/domain"
	"github.com/halcyonlabs/vaultgate/internal/server/store"
	"github.com/halcyonlabs/vaultgate/pkg/cryptox"
	"github.com/halcyonlabs/vaultgate/pkg/idx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// maxFailedAttempts locks the account on the attempt that reaches it.
	maxFailedAttempts = 3
	lockoutPeriod     = 15 * time.Minute

	totpPeriod = 30
	totpSkew   = 1 // accept the previous, current, and next time step
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account locked")
	ErrNoPendingEnrollment = errors.New("no pending MFA enrollment")
	ErrInvalidCode         = errors.New("invalid one-time code")
	ErrMFANotEnabled       = errors.New("MFA not enabled for this user")
	ErrUsernameTaken       = errors.New("username already provisioned")
)

// AuthService drives a user from password check through MFA enrollment or
// verification. One instance serves all accounts; per-account serialization
// is the store's job.
type AuthService struct {
	Store  store.Store
	Issuer string // issuer name embedded in otpauth provisioning URIs

	// Now is the clock used for lockout and code validation. Defaults to
	// time.Now; tests substitute a fixed clock.
	Now func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Provision creates an account with the given credentials and no second
// factor enrolled.
func (s *AuthService) Provision(ctx context.Context, username, password string) (domain.Account, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	account := domain.Account{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		MFA:          domain.MFAState{Mode: domain.MFAUnenrolled},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Accounts().Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, ErrUsernameTaken
		}
		return domain.Account{}, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// SubmitPassword checks the first factor. On success the failure counter
// resets and the result says which second-factor step comes next; for an
// unenrolled account that includes a fresh candidate secret and otpauth URI.
//
// An unknown username reports ErrInvalidCredentials, identical to a wrong
// password, so the login path cannot be used to probe for usernames.
func (s *AuthService) SubmitPassword(ctx context.Context, username, password string) (domain.LoginResult, error) {
	var (
		result  domain.LoginResult
		authErr error
	)

	err := s.Store.Accounts().Update(ctx, username, func(a *domain.Account) error {
		now := s.now()
		if a.Locked(now) {
			return ErrAccountLocked // no state change while locked
		}

		if cryptox.VerifyPassword(password, a.PasswordHash) != nil {
			authErr = s.recordFailure(a, now, ErrInvalidCredentials)
			return nil // persist the counter/lock update
		}

		a.FailedAttempts = 0
		a.LockedUntil = nil

		switch a.MFA.Mode {
		case domain.MFAEnrolled:
			result = domain.LoginResult{Next: domain.LoginNextVerify}
		default:
			// Unenrolled, or a prior enrollment attempt was abandoned: a
			// new login supersedes any earlier candidate secret.
			key, err := totp.Generate(totp.GenerateOpts{
				Issuer:      s.Issuer,
				AccountName: username,
				Period:      totpPeriod,
				Digits:      otp.DigitsSix,
				Algorithm:   otp.AlgorithmSHA1,
			})
			if err != nil {
				return fmt.Errorf("failed to generate TOTP key: %w", err)
			}
			a.MFA = domain.MFAState{
				Mode:            domain.MFAPending,
				PendingSecret:   key.Secret(),
				PendingIssuedAt: now,
			}
			result = domain.LoginResult{
				Next:       domain.LoginNextEnroll,
				TOTPSecret: key.Secret(),
				OtpauthURL: key.URL(),
			}
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.LoginResult{}, err
	}
	if authErr != nil {
		return domain.LoginResult{}, authErr
	}
	return result, nil
}

// ConfirmEnrollment validates a code against the pending candidate secret
// and, on success, commits it as the account's second factor. On a bad code
// the pending enrollment is retained so the caller may retry.
func (s *AuthService) ConfirmEnrollment(ctx context.Context, username, code string) error {
	var authErr error

	err := s.Store.Accounts().Update(ctx, username, func(a *domain.Account) error {
		now := s.now()
		if a.Locked(now) {
			return ErrAccountLocked
		}
		if a.MFA.Mode != domain.MFAPending {
			return ErrNoPendingEnrollment
		}

		if !validateCode(code, a.MFA.PendingSecret, now) {
			authErr = s.recordFailure(a, now, ErrInvalidCode)
			return nil
		}

		a.FailedAttempts = 0
		a.MFA = domain.MFAState{
			Mode:   domain.MFAEnrolled,
			Secret: a.MFA.PendingSecret,
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoPendingEnrollment
	}
	if err != nil {
		return err
	}
	return authErr
}

// VerifySecondFactor validates a code against the committed secret. A nil
// return means the caller should issue a session. Failed codes count toward
// the same lockout as failed passwords.
func (s *AuthService) VerifySecondFactor(ctx context.Context, username, code string) error {
	var authErr error

	err := s.Store.Accounts().Update(ctx, username, func(a *domain.Account) error {
		now := s.now()
		if a.Locked(now) {
			return ErrAccountLocked
		}
		if a.MFA.Mode != domain.MFAEnrolled {
			return ErrMFANotEnabled
		}

		if !validateCode(code, a.MFA.Secret, now) {
			authErr = s.recordFailure(a, now, ErrInvalidCode)
			return nil
		}

		a.FailedAttempts = 0
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrMFANotEnabled
	}
	if err != nil {
		return err
	}
	return authErr
}

// recordFailure increments the failure counter and applies the lockout when
// the threshold is reached, at which point the lockout error supersedes the
// factor-specific one. Caller persists the mutation.
func (s *AuthService) recordFailure(a *domain.Account, now time.Time, failure error) error {
	a.FailedAttempts++
	if a.FailedAttempts >= maxFailedAttempts {
		until := now.Add(lockoutPeriod)
		a.LockedUntil = &until
		return ErrAccountLocked
	}
	return failure
}

func validateCode(code, secret string, at time.Time) bool {
	valid, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}

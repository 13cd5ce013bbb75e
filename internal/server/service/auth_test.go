package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/halcyonlabs/vaultgate/internal/server/domain"
	"github.com/halcyonlabs/vaultgate/internal/server/store/drivers/memory"
	"github.com/halcyonlabs/vaultgate/pkg/cryptox"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	pepperPath := filepath.Join(os.TempDir(), "vaultgate-service-test-pepper")
	cryptox.SetPepperPath(pepperPath)

	os.Remove(pepperPath)
	defer os.Remove(pepperPath)

	os.Exit(m.Run())
}

// authFixture wires an AuthService over the memory driver with a movable
// clock.
type authFixture struct {
	svc *AuthService
	db  *memory.Store
	now time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	f := &authFixture{
		db:  memory.NewStore(),
		now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = &AuthService{
		Store:  f.db,
		Issuer: "vaultgate-test",
		Now:    func() time.Time { return f.now },
	}
	return f
}

func (f *authFixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *authFixture) provision(t *testing.T, username, password string) {
	t.Helper()
	_, err := f.svc.Provision(context.Background(), username, password)
	require.NoError(t, err)
}

// enroll walks a user through the full enrollment flow and returns the
// committed secret.
func (f *authFixture) enroll(t *testing.T, username, password string) string {
	t.Helper()
	ctx := context.Background()

	result, err := f.svc.SubmitPassword(ctx, username, password)
	require.NoError(t, err)
	require.Equal(t, domain.LoginNextEnroll, result.Next)
	require.NotEmpty(t, result.TOTPSecret)

	require.NoError(t, f.svc.ConfirmEnrollment(ctx, username, f.code(t, result.TOTPSecret, 0)))
	return result.TOTPSecret
}

// code computes the TOTP code for a secret at the fixture clock shifted by
// the given number of 30-second steps.
func (f *authFixture) code(t *testing.T, secret string, stepOffset int) string {
	t.Helper()
	at := f.now.Add(time.Duration(stepOffset) * 30 * time.Second)
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestProvision(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	account, err := f.svc.Provision(ctx, "user1", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, account.ID)
	require.Equal(t, domain.MFAUnenrolled, account.MFA.Mode)
	require.NotEqual(t, "password123", account.PasswordHash, "password must be hashed")

	_, err = f.svc.Provision(ctx, "user1", "other")
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestSubmitPassword(t *testing.T) {
	t.Run("unknown user and wrong password are indistinguishable", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")
		ctx := context.Background()

		_, errUnknown := f.svc.SubmitPassword(ctx, "nobody", "password123")
		_, errWrong := f.svc.SubmitPassword(ctx, "user1", "wrong")
		require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	})

	t.Run("first login starts enrollment", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")

		result, err := f.svc.SubmitPassword(context.Background(), "user1", "password123")
		require.NoError(t, err)
		require.Equal(t, domain.LoginNextEnroll, result.Next)
		require.NotEmpty(t, result.TOTPSecret)
		require.Contains(t, result.OtpauthURL, "otpauth://totp/")
		require.Contains(t, result.OtpauthURL, "vaultgate-test")
	})

	t.Run("enrolled account is asked for a code only", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")
		f.enroll(t, "user1", "password123")

		result, err := f.svc.SubmitPassword(context.Background(), "user1", "password123")
		require.NoError(t, err)
		require.Equal(t, domain.LoginNextVerify, result.Next)
		require.Empty(t, result.TOTPSecret, "committed secret must never be re-echoed")
	})

	t.Run("a fresh login supersedes a stale pending secret", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")
		ctx := context.Background()

		first, err := f.svc.SubmitPassword(ctx, "user1", "password123")
		require.NoError(t, err)
		second, err := f.svc.SubmitPassword(ctx, "user1", "password123")
		require.NoError(t, err)
		require.NotEqual(t, first.TOTPSecret, second.TOTPSecret)

		// Only the newest candidate secret confirms.
		require.ErrorIs(t,
			f.svc.ConfirmEnrollment(ctx, "user1", f.code(t, first.TOTPSecret, 0)),
			ErrInvalidCode)
		require.NoError(t,
			f.svc.ConfirmEnrollment(ctx, "user1", f.code(t, second.TOTPSecret, 0)))
	})
}

func TestLockout(t *testing.T) {
	ctx := context.Background()

	t.Run("third consecutive failure locks the account", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")

		_, err := f.svc.SubmitPassword(ctx, "user1", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = f.svc.SubmitPassword(ctx, "user1", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = f.svc.SubmitPassword(ctx, "user1", "wrong")
		require.ErrorIs(t, err, ErrAccountLocked)
	})

	t.Run("correct password is rejected while locked", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")
		lockAccount(t, f)

		_, err := f.svc.SubmitPassword(ctx, "user1", "password123")
		require.ErrorIs(t, err, ErrAccountLocked)
	})

	t.Run("failures while locked do not extend the lock", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")
		lockAccount(t, f)

		f.advance(10 * time.Minute)
		_, err := f.svc.SubmitPassword(ctx, "user1", "wrong")
		require.ErrorIs(t, err, ErrAccountLocked)

		// The original lock expires on schedule regardless.
		f.advance(5*time.Minute + time.Second)
		_, err = f.svc.SubmitPassword(ctx, "user1", "password123")
		require.NoError(t, err)
	})

	t.Run("lock clears by time alone", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")
		lockAccount(t, f)

		f.advance(15*time.Minute - time.Second)
		_, err := f.svc.SubmitPassword(ctx, "user1", "password123")
		require.ErrorIs(t, err, ErrAccountLocked)

		f.advance(time.Second)
		_, err = f.svc.SubmitPassword(ctx, "user1", "password123")
		require.NoError(t, err)
	})

	t.Run("success resets the failure counter", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")

		_, err := f.svc.SubmitPassword(ctx, "user1", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = f.svc.SubmitPassword(ctx, "user1", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = f.svc.SubmitPassword(ctx, "user1", "password123")
		require.NoError(t, err)

		// Two more failures only bring the counter back to two.
		_, err = f.svc.SubmitPassword(ctx, "user1", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = f.svc.SubmitPassword(ctx, "user1", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("bad codes count toward the same lockout", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")
		f.enroll(t, "user1", "password123")

		_, err := f.svc.SubmitPassword(ctx, "user1", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		require.ErrorIs(t, f.svc.VerifySecondFactor(ctx, "user1", "000000"), ErrInvalidCode)
		require.ErrorIs(t, f.svc.VerifySecondFactor(ctx, "user1", "000000"), ErrAccountLocked)

		_, err = f.svc.SubmitPassword(ctx, "user1", "password123")
		require.ErrorIs(t, err, ErrAccountLocked)
	})
}

// lockAccount drives the fixture account into the locked state.
func lockAccount(t *testing.T, f *authFixture) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := f.svc.SubmitPassword(ctx, "user1", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := f.svc.SubmitPassword(ctx, "user1", "wrong")
	require.ErrorIs(t, err, ErrAccountLocked)
}

func TestConfirmEnrollment(t *testing.T) {
	ctx := context.Background()

	t.Run("commits the candidate secret", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")

		result, err := f.svc.SubmitPassword(ctx, "user1", "password123")
		require.NoError(t, err)

		require.NoError(t, f.svc.ConfirmEnrollment(ctx, "user1", f.code(t, result.TOTPSecret, 0)))

		account, err := f.db.Accounts().GetByUsername(ctx, "user1")
		require.NoError(t, err)
		require.Equal(t, domain.MFAEnrolled, account.MFA.Mode)
		require.Equal(t, result.TOTPSecret, account.MFA.Secret)
		require.Empty(t, account.MFA.PendingSecret)
	})

	t.Run("retains the pending secret after a bad code", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")

		result, err := f.svc.SubmitPassword(ctx, "user1", "password123")
		require.NoError(t, err)

		require.ErrorIs(t, f.svc.ConfirmEnrollment(ctx, "user1", "000000"), ErrInvalidCode)

		// Retry with the same secret still succeeds.
		require.NoError(t, f.svc.ConfirmEnrollment(ctx, "user1", f.code(t, result.TOTPSecret, 0)))
	})

	t.Run("requires a pending enrollment", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")

		require.ErrorIs(t, f.svc.ConfirmEnrollment(ctx, "user1", "123456"), ErrNoPendingEnrollment)
		require.ErrorIs(t, f.svc.ConfirmEnrollment(ctx, "nobody", "123456"), ErrNoPendingEnrollment)
	})
}

func TestVerifySecondFactor(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts the current code", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")
		secret := f.enroll(t, "user1", "password123")

		require.NoError(t, f.svc.VerifySecondFactor(ctx, "user1", f.code(t, secret, 0)))
	})

	t.Run("accepts codes one step either side", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")
		secret := f.enroll(t, "user1", "password123")

		// Pin the clock to a step boundary so offsets map to whole steps.
		f.now = f.now.Truncate(30 * time.Second)

		require.NoError(t, f.svc.VerifySecondFactor(ctx, "user1", f.code(t, secret, -1)))
		require.NoError(t, f.svc.VerifySecondFactor(ctx, "user1", f.code(t, secret, +1)))
	})

	t.Run("rejects codes two steps away", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")
		secret := f.enroll(t, "user1", "password123")

		f.now = f.now.Truncate(30 * time.Second)

		require.ErrorIs(t,
			f.svc.VerifySecondFactor(ctx, "user1", f.code(t, secret, -2)), ErrInvalidCode)
		require.ErrorIs(t,
			f.svc.VerifySecondFactor(ctx, "user1", f.code(t, secret, +2)), ErrInvalidCode)
	})

	t.Run("requires enrollment", func(t *testing.T) {
		f := newAuthFixture(t)
		f.provision(t, "user1", "password123")

		require.ErrorIs(t, f.svc.VerifySecondFactor(ctx, "user1", "123456"), ErrMFANotEnabled)
		require.ErrorIs(t, f.svc.VerifySecondFactor(ctx, "nobody", "123456"), ErrMFANotEnabled)
	})
}

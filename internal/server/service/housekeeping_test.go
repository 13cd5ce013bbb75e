package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/halcyonlabs/vaultgate/internal/server/domain"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()

	f := newAuthFixture(t)
	f.provision(t, "user1", "password123")

	sessions := &SessionService{Store: f.db, Now: func() time.Time { return f.now }}
	hk := NewHousekeepingService(f.db, slog.New(slog.DiscardHandler), time.Minute)
	hk.Now = func() time.Time { return f.now }

	t.Run("removes expired sessions", func(t *testing.T) {
		token, _, err := sessions.Issue(ctx, "user1")
		require.NoError(t, err)

		f.advance(2 * time.Hour)
		hk.Cleanup()

		// The record is gone entirely, not merely expired.
		_, err = sessions.Validate(ctx, token)
		require.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("discards stale pending enrollments", func(t *testing.T) {
		result, err := f.svc.SubmitPassword(ctx, "user1", "password123")
		require.NoError(t, err)
		require.Equal(t, domain.LoginNextEnroll, result.Next)

		f.advance(DefaultEnrollmentTTL + time.Minute)
		hk.Cleanup()

		require.ErrorIs(t,
			f.svc.ConfirmEnrollment(ctx, "user1", f.code(t, result.TOTPSecret, 0)),
			ErrNoPendingEnrollment)
	})

	t.Run("leaves fresh pending enrollments alone", func(t *testing.T) {
		result, err := f.svc.SubmitPassword(ctx, "user1", "password123")
		require.NoError(t, err)

		f.advance(time.Minute)
		hk.Cleanup()

		require.NoError(t,
			f.svc.ConfirmEnrollment(ctx, "user1", f.code(t, result.TOTPSecret, 0)))
	})
}

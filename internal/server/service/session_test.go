package service

import (
	"context"
	"testing"
	"time"

	"github.com/halcyonlabs/vaultgate/internal/server/store/drivers/memory"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	svc *SessionService
	now time.Time
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = &SessionService{
		Store: memory.NewStore(),
		Now:   func() time.Time { return f.now },
	}
	return f
}

func TestSessionIssue(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	token, session, err := f.svc.Issue(ctx, "user1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "user1", session.Username)
	require.Equal(t, f.now, session.IssuedAt)
	require.Equal(t, f.now.Add(time.Hour), session.ExpiresAt, "default TTL is one hour")
	require.NotEqual(t, token, session.TokenHash, "raw token must not be stored")
}

func TestSessionValidate(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves a live token", func(t *testing.T) {
		f := newSessionFixture(t)
		token, issued, err := f.svc.Issue(ctx, "user1")
		require.NoError(t, err)

		session, err := f.svc.Validate(ctx, token)
		require.NoError(t, err)
		require.Equal(t, issued.ID, session.ID)
		require.Equal(t, "user1", session.Username)
	})

	t.Run("rejects unknown tokens", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.svc.Validate(ctx, "never-issued")
		require.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("valid until but not at the expiry instant", func(t *testing.T) {
		f := newSessionFixture(t)
		token, _, err := f.svc.Issue(ctx, "user1")
		require.NoError(t, err)

		f.now = f.now.Add(time.Hour - time.Nanosecond)
		_, err = f.svc.Validate(ctx, token)
		require.NoError(t, err)

		f.now = f.now.Add(time.Nanosecond)
		_, err = f.svc.Validate(ctx, token)
		require.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("reissue invalidates the previous token", func(t *testing.T) {
		f := newSessionFixture(t)
		first, _, err := f.svc.Issue(ctx, "user1")
		require.NoError(t, err)
		second, _, err := f.svc.Issue(ctx, "user1")
		require.NoError(t, err)

		_, err = f.svc.Validate(ctx, first)
		require.ErrorIs(t, err, ErrSessionNotFound)
		_, err = f.svc.Validate(ctx, second)
		require.NoError(t, err)
	})

	t.Run("sessions for distinct users coexist", func(t *testing.T) {
		f := newSessionFixture(t)
		tokenA, _, err := f.svc.Issue(ctx, "alice")
		require.NoError(t, err)
		tokenB, _, err := f.svc.Issue(ctx, "bob")
		require.NoError(t, err)

		sessionA, err := f.svc.Validate(ctx, tokenA)
		require.NoError(t, err)
		require.Equal(t, "alice", sessionA.Username)

		sessionB, err := f.svc.Validate(ctx, tokenB)
		require.NoError(t, err)
		require.Equal(t, "bob", sessionB.Username)
	})

	t.Run("custom TTL is honoured", func(t *testing.T) {
		f := newSessionFixture(t)
		f.svc.TTL = 10 * time.Minute

		token, session, err := f.svc.Issue(ctx, "user1")
		require.NoError(t, err)
		require.Equal(t, f.now.Add(10*time.Minute), session.ExpiresAt)

		f.now = f.now.Add(11 * time.Minute)
		_, err = f.svc.Validate(ctx, token)
		require.ErrorIs(t, err, ErrSessionExpired)
	})
}

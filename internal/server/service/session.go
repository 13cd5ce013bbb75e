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
)

// DefaultSessionTTL is how long an issued session token stays valid.
const DefaultSessionTTL = time.Hour

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// SessionService issues and validates bearer session tokens. Tokens are
// opaque 256-bit values; only their SHA-256 fingerprint is stored, so a
// leaked store cannot be replayed against the API.
type SessionService struct {
	Store store.Store

	// TTL overrides DefaultSessionTTL when non-zero.
	TTL time.Duration

	// Now defaults to time.Now; tests substitute a fixed clock.
	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultSessionTTL
}

// Issue mints a fresh session for the user, replacing any session they
// already hold. The raw token is returned exactly once and never stored.
func (s *SessionService) Issue(ctx context.Context, username string) (string, domain.Session, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now()
	session := domain.Session{
		ID:        idx.New().String(),
		Username:  username,
		TokenHash: cryptox.FingerprintToken(token),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl()),
	}

	if err := s.Store.Sessions().Replace(ctx, session); err != nil {
		return "", domain.Session{}, fmt.Errorf("failed to persist session: %w", err)
	}
	return token, session, nil
}

// Validate resolves a raw bearer token to its session. Unknown and expired
// tokens are reported separately so callers can log the distinction, though
// both should surface to clients as the same authorization failure.
func (s *SessionService) Validate(ctx context.Context, token string) (domain.Session, error) {
	session, err := s.Store.Sessions().GetByTokenHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("failed to look up session: %w", err)
	}
	if session.Expired(s.now()) {
		return domain.Session{}, ErrSessionExpired
	}
	return session, nil
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/halcyonlabs/vaultgate/internal/server/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (memory, sqlite)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Accounts() Accounts
	Sessions() Sessions

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing store is still usable.
	Ping(ctx context.Context) error
}

type Accounts interface {
	// GetByUsername returns the account for a username.
	GetByUsername(ctx context.Context, username string) (domain.Account, error)

	// Create inserts a new account (id is provided by app via ULID).
	Create(ctx context.Context, a domain.Account) error

	// Update applies fn to the stored account under per-account
	// serialization: concurrent updates against the same username are
	// applied one at a time, while distinct usernames never contend. The
	// mutated account is persisted when fn returns nil; any error from fn
	// aborts the update and is returned unchanged.
	Update(ctx context.Context, username string, fn func(a *domain.Account) error) error

	// ExpirePendingEnrollments reverts accounts whose candidate secret was
	// issued before cutoff back to the unenrolled state (housekeeping).
	ExpirePendingEnrollments(ctx context.Context, cutoff time.Time) error
}

type Sessions interface {
	// Replace stores a session, removing any existing session for the same
	// username first. Last write wins when two issuances race.
	Replace(ctx context.Context, s domain.Session) error

	// GetByTokenHash looks a session up by its token fingerprint. Expired
	// records are returned as-is; expiry is the caller's judgment.
	GetByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error)

	// DeleteExpired removes sessions whose expiry has passed (housekeeping).
	DeleteExpired(ctx context.Context, now time.Time) error
}

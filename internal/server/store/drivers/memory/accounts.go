package memory

import (
	"context"
	"sync"
	"time"

	"github.com/halcyonlabs/vaultgate/internal/server/domain"
	"github.com/halcyonlabs/vaultgate/internal/server/store"
)

type accountsRepo struct {
	mu      sync.RWMutex // guards the map itself, not individual accounts
	entries map[string]*accountEntry
}

func (r *accountsRepo) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	r.mu.RLock()
	entry, ok := r.entries[username]
	r.mu.RUnlock()
	if !ok {
		return domain.Account{}, store.ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.acct, nil
}

func (r *accountsRepo) Create(ctx context.Context, a domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[a.Username]; ok {
		return store.ErrAlreadyExists
	}
	r.entries[a.Username] = &accountEntry{acct: a}
	return nil
}

func (r *accountsRepo) Update(
	ctx context.Context,
	username string,
	fn func(a *domain.Account) error,
) error {
	r.mu.RLock()
	entry, ok := r.entries[username]
	r.mu.RUnlock()
	if !ok {
		return store.ErrNotFound
	}

	// Holding the per-account lock across the whole read-modify-write is
	// what prevents lost counter updates under concurrent login attempts.
	entry.mu.Lock()
	defer entry.mu.Unlock()

	updated := entry.acct
	if err := fn(&updated); err != nil {
		return err
	}
	updated.UpdatedAt = time.Now().UTC()
	entry.acct = updated
	return nil
}

func (r *accountsRepo) ExpirePendingEnrollments(ctx context.Context, cutoff time.Time) error {
	r.mu.RLock()
	entries := make([]*accountEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	for _, entry := range entries {
		entry.mu.Lock()
		if entry.acct.MFA.Mode == domain.MFAPending &&
			entry.acct.MFA.PendingIssuedAt.Before(cutoff) {
			entry.acct.MFA = domain.MFAState{Mode: domain.MFAUnenrolled}
			entry.acct.UpdatedAt = time.Now().UTC()
		}
		entry.mu.Unlock()
	}
	return nil
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/halcyonlabs/vaultgate/internal/server/domain"
	"github.com/halcyonlabs/vaultgate/internal/server/store"
)

type sessionsRepo struct {
	mu         sync.RWMutex
	byUsername map[string]domain.Session
	byHash     map[string]string // token fingerprint -> username
}

func (r *sessionsRepo) Replace(ctx context.Context, s domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUsername[s.Username]; ok {
		delete(r.byHash, prev.TokenHash)
	}
	r.byUsername[s.Username] = s
	r.byHash[s.TokenHash] = s.Username
	return nil
}

func (r *sessionsRepo) GetByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.byHash[tokenHash]
	if !ok {
		return domain.Session{}, store.ErrNotFound
	}
	return r.byUsername[username], nil
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for username, s := range r.byUsername {
		if s.Expired(now) {
			delete(r.byHash, s.TokenHash)
			delete(r.byUsername, username)
		}
	}
	return nil
}

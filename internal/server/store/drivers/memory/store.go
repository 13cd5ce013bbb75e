// Package memory is the default store driver: process-local maps guarded by
// per-account locks, so concurrent login attempts against one account
// serialize while unrelated accounts proceed independently.
package memory

import (
	"context"
	"sync"

	"github.com/halcyonlabs/vaultgate/internal/server/domain"
	"github.com/halcyonlabs/vaultgate/internal/server/store"
)

type Store struct {
	accounts *accountsRepo
	sessions *sessionsRepo
}

func NewStore() *Store {
	return &Store{
		accounts: &accountsRepo{entries: make(map[string]*accountEntry)},
		sessions: &sessionsRepo{
			byUsername: make(map[string]domain.Session),
			byHash:     make(map[string]string),
		},
	}
}

func (s *Store) Accounts() store.Accounts { return s.accounts }
func (s *Store) Sessions() store.Sessions { return s.sessions }

func (s *Store) Close() error { return nil }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// accountEntry pairs an account with its own mutex so updates to one
// username never block another.
type accountEntry struct {
	mu   sync.Mutex
	acct domain.Account // guarded by mu
}

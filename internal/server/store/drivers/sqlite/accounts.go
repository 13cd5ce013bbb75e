package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/halcyonlabs/vaultgate/internal/server/domain"
	"github.com/halcyonlabs/vaultgate/internal/server/store"
)

type accountsRepo struct {
	db *sql.DB
}

const accountColumns = `id, username, password_hash, mfa_mode, mfa_secret,
	pending_secret, pending_issued_at, failed_attempts, locked_until,
	created_at, updated_at`

func (r *accountsRepo) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	return scanAccount(row)
}

func (r *accountsRepo) Create(ctx context.Context, a domain.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, username, password_hash, mfa_mode, mfa_secret,
			pending_secret, pending_issued_at, failed_attempts, locked_until,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.PasswordHash, string(a.MFA.Mode),
		mapStringNull(a.MFA.Secret), mapStringNull(a.MFA.PendingSecret),
		mapZeroTimeNull(a.MFA.PendingIssuedAt), a.FailedAttempts,
		mapOptionalTime(a.LockedUntil), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

// Update runs the read-modify-write inside a transaction. SQLite's single
// writer guarantees two racing updates against the same username apply one
// after the other.
func (r *accountsRepo) Update(
	ctx context.Context,
	username string,
	fn func(a *domain.Account) error,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	acct, err := scanAccount(row)
	if err != nil {
		return err
	}

	if err := fn(&acct); err != nil {
		return err
	}
	acct.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts SET
			password_hash = ?, mfa_mode = ?, mfa_secret = ?,
			pending_secret = ?, pending_issued_at = ?,
			failed_attempts = ?, locked_until = ?, updated_at = ?
		WHERE username = ?`,
		acct.PasswordHash, string(acct.MFA.Mode), mapStringNull(acct.MFA.Secret),
		mapStringNull(acct.MFA.PendingSecret), mapZeroTimeNull(acct.MFA.PendingIssuedAt),
		acct.FailedAttempts, mapOptionalTime(acct.LockedUntil), acct.UpdatedAt,
		username,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *accountsRepo) ExpirePendingEnrollments(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET
			mfa_mode = 'unenrolled', pending_secret = NULL,
			pending_issued_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE mfa_mode = 'pending' AND pending_issued_at < ?`, cutoff)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a                          domain.Account
		mode                       string
		mfaSecret, pendingSecret   sql.NullString
		pendingIssuedAt, lockedTil sql.NullTime
	)

	err := row.Scan(
		&a.ID, &a.Username, &a.PasswordHash, &mode, &mfaSecret,
		&pendingSecret, &pendingIssuedAt, &a.FailedAttempts, &lockedTil,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.MFA = domain.MFAState{
		Mode:          domain.MFAMode(mode),
		Secret:        mapNullString(mfaSecret),
		PendingSecret: mapNullString(pendingSecret),
	}
	if pendingIssuedAt.Valid {
		a.MFA.PendingIssuedAt = pendingIssuedAt.Time
	}
	a.LockedUntil = mapNullTimePtr(lockedTil)
	return a, nil
}

func mapZeroTimeNull(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/halcyonlabs/vaultgate/internal/server/domain"
)

type sessionsRepo struct {
	db *sql.DB
}

func (r *sessionsRepo) Replace(ctx context.Context, s domain.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE username = ?`, s.Username); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, username, token_hash, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Username, s.TokenHash, s.IssuedAt, s.ExpiresAt,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *sessionsRepo) GetByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, token_hash, issued_at, expires_at
		FROM sessions WHERE token_hash = ?`, tokenHash,
	).Scan(&s.ID, &s.Username, &s.TokenHash, &s.IssuedAt, &s.ExpiresAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, now)
	return err
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/checkin/internal/auth"
)

// GetAccount returns the shared account.
func (s *Store) GetAccount(ctx context.Context, email string) (auth.Account, error) {
	var (
		a         auth.Account
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT email, password_hash, updated_at FROM accounts WHERE email = ?`, email,
	).Scan(&a.Email, &a.PasswordHash, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	if err != nil {
		return auth.Account{}, fmt.Errorf("get account: %w", err)
	}
	a.UpdatedAt = fromMicros(updatedAt)
	return a, nil
}

// SetPassword creates the account or replaces its password hash.
func (s *Store) SetPassword(ctx context.Context, email, hash string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (email, password_hash, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = excluded.password_hash, updated_at = excluded.updated_at`,
		email, hash, toMicros(at))
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

// CreateSession stores a new auth session.
func (s *Store) CreateSession(ctx context.Context, rec auth.SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, email, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Email, toMicros(rec.CreatedAt), toMicros(rec.ExpiresAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns an auth session.
func (s *Store) GetSession(ctx context.Context, id string) (auth.SessionRecord, error) {
	var (
		rec                  auth.SessionRecord
		createdAt, expiresAt int64
		revokedAt            sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, created_at, expires_at, revoked_at
		FROM auth_sessions WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Email, &createdAt, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.SessionRecord{}, auth.ErrSessionNotFound
	}
	if err != nil {
		return auth.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}

	rec.CreatedAt = fromMicros(createdAt)
	rec.ExpiresAt = fromMicros(expiresAt)
	if revokedAt.Valid {
		t := fromMicros(revokedAt.Int64)
		rec.RevokedAt = &t
	}
	return rec, nil
}

// RevokeSession marks an auth session revoked.
func (s *Store) RevokeSession(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE auth_sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		toMicros(at), id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

// PurgeSessions deletes sessions that expired or were revoked before the
// given time.
func (s *Store) PurgeSessions(ctx context.Context, before time.Time) (int64, error) {
	b := toMicros(before)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE expires_at <= ? OR revoked_at <= ?`, b, b)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

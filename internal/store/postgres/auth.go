package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/checkin/internal/auth"
)

// GetAccount returns the shared account.
func (s *Store) GetAccount(ctx context.Context, email string) (auth.Account, error) {
	var a auth.Account
	err := s.pool.QueryRow(ctx,
		`SELECT email, password_hash, updated_at FROM accounts WHERE email = $1`, email,
	).Scan(&a.Email, &a.PasswordHash, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	if err != nil {
		return auth.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// SetPassword creates the account or replaces its password hash.
func (s *Store) SetPassword(ctx context.Context, email, hash string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (email, password_hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at`,
		email, hash, at)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

// CreateSession stores a new auth session.
func (s *Store) CreateSession(ctx context.Context, rec auth.SessionRecord) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO auth_sessions (id, email, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`,
		id, rec.Email, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns an auth session.
func (s *Store) GetSession(ctx context.Context, id string) (auth.SessionRecord, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return auth.SessionRecord{}, auth.ErrSessionNotFound
	}

	var (
		rec       auth.SessionRecord
		sid       uuid.UUID
		revokedAt pgtype.Timestamptz
	)
	err = s.pool.QueryRow(ctx, `
		SELECT id, email, created_at, expires_at, revoked_at
		FROM auth_sessions WHERE id = $1`, uid,
	).Scan(&sid, &rec.Email, &rec.CreatedAt, &rec.ExpiresAt, &revokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.SessionRecord{}, auth.ErrSessionNotFound
	}
	if err != nil {
		return auth.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}

	rec.ID = sid.String()
	if revokedAt.Valid {
		t := revokedAt.Time
		rec.RevokedAt = &t
	}
	return rec, nil
}

// RevokeSession marks an auth session revoked.
func (s *Store) RevokeSession(ctx context.Context, id string, at time.Time) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return auth.ErrSessionNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE auth_sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, uid, at)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

// PurgeSessions deletes sessions that expired or were revoked before the
// given time.
func (s *Store) PurgeSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM auth_sessions
		WHERE expires_at <= $1 OR revoked_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

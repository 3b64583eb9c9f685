// Package auth implements the shared-password gate.
//
// All receptionists sign in to one shared account. A successful sign-in
// creates an auth session row and returns a signed token naming it; the
// token travels in a cookie or a bearer header and is checked against the
// row on every request, so signing out revokes it everywhere.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account is the shared login.
type Account struct {
	Email        string
	PasswordHash string
	UpdatedAt    time.Time
}

// SessionRecord is a persisted auth session.
type SessionRecord struct {
	ID        string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Store persists the shared account and its sessions.
type Store interface {
	GetAccount(ctx context.Context, email string) (Account, error)
	SetPassword(ctx context.Context, email, hash string, at time.Time) error
	CreateSession(ctx context.Context, rec SessionRecord) error
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	RevokeSession(ctx context.Context, id string, at time.Time) error
	// PurgeSessions deletes sessions that expired or were revoked before the
	// given time and returns how many were removed.
	PurgeSessions(ctx context.Context, before time.Time) (int64, error)
}

// Config configures a Manager.
type Config struct {
	Email string
	Key   []byte
	TTL   time.Duration

	// BcryptCost is used by SetPassword.
	BcryptCost int

	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// Session is a signed-in device's auth session.
type Session struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"-"`
}

// Manager signs receptionists in and out.
type Manager struct {
	store  Store
	email  string
	ttl    time.Duration
	hasher *Hasher
	tokens tokenSigner
	now    func() time.Time
}

// NewManager creates a Manager.
func NewManager(store Store, cfg Config) *Manager {
	m := &Manager{
		store:  store,
		email:  strings.ToLower(strings.TrimSpace(cfg.Email)),
		ttl:    cfg.TTL,
		hasher: NewHasher(cfg.BcryptCost),
		tokens: tokenSigner{key: cfg.Key},
		now:    cfg.Now,
	}
	if m.ttl <= 0 {
		m.ttl = 12 * time.Hour
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// SignIn checks password against the shared account and opens a session.
func (m *Manager) SignIn(ctx context.Context, password string) (Session, error) {
	if password == "" {
		return Session{}, ErrPasswordRequired
	}

	acct, err := m.store.GetAccount(ctx, m.email)
	if errors.Is(err, ErrAccountNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}

	ok, err := m.hasher.Compare(acct.PasswordHash, password)
	if err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}
	if !ok {
		return Session{}, ErrInvalidCredentials
	}

	now := m.now().UTC().Truncate(time.Second)
	rec := SessionRecord{
		ID:        uuid.NewString(),
		Email:     m.email,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, rec); err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}

	token, err := m.tokens.sign(rec)
	if err != nil {
		return Session{}, fmt.Errorf("sign in: %w", err)
	}

	return Session{ID: rec.ID, Email: rec.Email, ExpiresAt: rec.ExpiresAt, Token: token}, nil
}

// Restore validates token and returns its session. Expired, revoked and
// unknown sessions fail with ErrInvalidToken or ErrSessionRevoked.
func (m *Manager) Restore(ctx context.Context, token string) (Session, error) {
	now := m.now()
	claims, err := m.tokens.parse(token, now)
	if err != nil {
		return Session{}, err
	}

	rec, err := m.store.GetSession(ctx, claims.ID)
	if errors.Is(err, ErrSessionNotFound) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		return Session{}, fmt.Errorf("restore session: %w", err)
	}
	if rec.RevokedAt != nil {
		return Session{}, ErrSessionRevoked
	}
	if !now.Before(rec.ExpiresAt) {
		return Session{}, ErrInvalidToken
	}

	return Session{ID: rec.ID, Email: rec.Email, ExpiresAt: rec.ExpiresAt, Token: token}, nil
}

// SignOut revokes the session named by token.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	s, err := m.Restore(ctx, token)
	if err != nil {
		return err
	}
	if err := m.store.RevokeSession(ctx, s.ID, m.now().UTC()); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// SetPassword replaces the shared account's password.
func (m *Manager) SetPassword(ctx context.Context, password string) error {
	hash, err := m.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := m.store.SetPassword(ctx, m.email, hash, m.now().UTC()); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

// Email returns the shared account identifier.
func (m *Manager) Email() string {
	return m.email
}

type contextKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// Package sqlite implements the participant and auth stores on an SQLite file.
//
// It is meant for a single server process: change notifications are
// published in-process right after each commit instead of through the
// database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/checkin/internal/core"
)

const participantColumns = `id, name, company, memo, status, check_in_time, created_at`

// toMicros stores timestamps as integer microseconds, which keeps the
// created_at order of bulk inserts exact.
func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

// Store is the SQLite participant store.
type Store struct {
	db   *sql.DB
	feed core.ChangePublisher
	now  func() time.Time

	// writeMu keeps notification order equal to commit order.
	writeMu sync.Mutex
	lastAt  time.Time
}

// Open opens the database at path, applies migrations and returns a store
// publishing changes to feed. feed may be nil.
func Open(path string, feed core.ChangePublisher) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, feed: feed, now: time.Now}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListParticipants returns every participant ordered by created_at.
func (s *Store) ListParticipants(ctx context.Context) ([]core.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM participants ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
	}
	defer rows.Close()

	var list []core.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
	}
	return list, nil
}

// GetParticipant returns one participant.
func (s *Store) GetParticipant(ctx context.Context, id string) (core.Participant, error) {
	p, err := scanParticipant(s.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Participant{}, core.ErrParticipantNotFound
	}
	if err != nil {
		return core.Participant{}, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
	}
	return p, nil
}

// InsertParticipant inserts one pending participant.
func (s *Store) InsertParticipant(ctx context.Context, d core.Draft) (core.Participant, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	p := s.newParticipant(d, s.nextCreatedAt(1))
	if err := insertParticipant(ctx, s.db, p); err != nil {
		return core.Participant{}, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}

	s.publish(core.InsertChange(p))
	return p, nil
}

// InsertParticipants inserts drafts in one transaction, one microsecond
// apart in created_at.
func (s *Store) InsertParticipants(ctx context.Context, drafts []core.Draft) (int, error) {
	if len(drafts) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	base := s.nextCreatedAt(len(drafts))
	inserted := make([]core.Participant, len(drafts))
	for i, d := range drafts {
		inserted[i] = s.newParticipant(d, base.Add(time.Duration(i)*time.Microsecond))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range inserted {
		if err := insertParticipant(ctx, tx, p); err != nil {
			return 0, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}

	for _, p := range inserted {
		s.publish(core.InsertChange(p))
	}
	return len(inserted), nil
}

// CheckIn moves a pending participant to checked_in.
func (s *Store) CheckIn(ctx context.Context, id string, at time.Time) (core.Participant, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE participants SET status = 'checked_in', check_in_time = ?
		WHERE id = ? AND status = 'pending'`,
		toMicros(at), id)
	if err != nil {
		return core.Participant{}, false, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Participant{}, false, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}

	p, err := s.GetParticipant(ctx, id)
	if err != nil {
		return core.Participant{}, false, err
	}
	if n == 0 {
		return p, false, nil
	}

	s.publish(core.UpdateChange(p))
	return p, true, nil
}

// DeleteParticipant removes a participant.
func (s *Store) DeleteParticipant(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM participants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrParticipantNotFound
	}

	s.publish(core.DeleteChange(id))
	return nil
}

// DeleteAllParticipants empties the participant table.
func (s *Store) DeleteAllParticipants(ctx context.Context) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rows, err := s.db.QueryContext(ctx, `DELETE FROM participants RETURNING id`)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}

	for _, id := range ids {
		s.publish(core.DeleteChange(id))
	}
	return int64(len(ids)), nil
}

// nextCreatedAt reserves n consecutive microseconds after the last
// timestamp handed out. Caller holds writeMu.
func (s *Store) nextCreatedAt(n int) time.Time {
	at := s.now().UTC().Truncate(time.Microsecond)
	if !at.After(s.lastAt) {
		at = s.lastAt.Add(time.Microsecond)
	}
	s.lastAt = at.Add(time.Duration(n-1) * time.Microsecond)
	return at
}

func (s *Store) newParticipant(d core.Draft, createdAt time.Time) core.Participant {
	return core.Participant{
		ID:        uuid.NewString(),
		Name:      d.Name,
		Company:   d.Company,
		Memo:      d.Memo,
		Status:    core.StatusPending,
		CreatedAt: createdAt,
	}
}

func (s *Store) publish(c core.Change) {
	if s.feed != nil {
		s.feed.Publish(c)
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertParticipant(ctx context.Context, db execer, p core.Participant) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO participants (id, name, company, memo, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullString(p.Company), nullString(p.Memo), string(p.Status), toMicros(p.CreatedAt))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row scanner) (core.Participant, error) {
	var (
		p           core.Participant
		company     sql.NullString
		memo        sql.NullString
		status      string
		checkInTime sql.NullInt64
		createdAt   int64
	)
	if err := row.Scan(&p.ID, &p.Name, &company, &memo, &status, &checkInTime, &createdAt); err != nil {
		return core.Participant{}, err
	}

	p.Company = company.String
	p.Memo = memo.String
	p.Status = core.Status(status)
	p.CreatedAt = fromMicros(createdAt)
	if checkInTime.Valid {
		t := fromMicros(checkInTime.Int64)
		p.CheckInTime = &t
	}
	return p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Package postgres implements the participant and auth stores on PostgreSQL.
//
// Row changes reach connected devices through LISTEN/NOTIFY: a trigger on the
// participants table publishes every insert, update and delete, and a single
// Listener relays them into the change hub.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/checkin/internal/core"
)

const participantColumns = `id, name, company, memo, status, check_in_time, created_at`

// Store is the PostgreSQL participant store.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ListParticipants returns every participant ordered by created_at.
func (s *Store) ListParticipants(ctx context.Context) ([]core.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+participantColumns+` FROM participants ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
	}

	list, err := pgx.CollectRows(rows, scanParticipant)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
	}
	return list, nil
}

// GetParticipant returns one participant.
func (s *Store) GetParticipant(ctx context.Context, id string) (core.Participant, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return core.Participant{}, core.ErrParticipantNotFound
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = $1`, uid)
	if err != nil {
		return core.Participant{}, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanParticipant)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Participant{}, core.ErrParticipantNotFound
	}
	if err != nil {
		return core.Participant{}, fmt.Errorf("%w: %w", core.ErrFetchFailed, err)
	}
	return p, nil
}

// InsertParticipant inserts one pending participant.
func (s *Store) InsertParticipant(ctx context.Context, d core.Draft) (core.Participant, error) {
	rows, err := s.pool.Query(ctx, `
		INSERT INTO participants (id, name, company, memo, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING `+participantColumns,
		uuid.New(), d.Name, nullText(d.Company), nullText(d.Memo))
	if err != nil {
		return core.Participant{}, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanParticipant)
	if err != nil {
		return core.Participant{}, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}
	return p, nil
}

// InsertParticipants bulk-inserts drafts in one transaction with COPY.
// created_at values are one microsecond apart so file order is kept.
func (s *Store) InsertParticipants(ctx context.Context, drafts []core.Draft) (int, error) {
	if len(drafts) == 0 {
		return 0, nil
	}

	base := time.Now().UTC().Truncate(time.Microsecond)
	rows := make([][]any, len(drafts))
	for i, d := range drafts {
		rows[i] = []any{
			uuid.New(),
			d.Name,
			nullText(d.Company),
			nullText(d.Memo),
			string(core.StatusPending),
			base.Add(time.Duration(i) * time.Microsecond),
		}
	}

	var n int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{"participants"},
			[]string{"id", "name", "company", "memo", "status", "created_at"},
			pgx.CopyFromRows(rows),
		)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}
	return int(n), nil
}

// CheckIn moves a pending participant to checked_in. The status condition
// makes concurrent check-ins of one participant write only once.
func (s *Store) CheckIn(ctx context.Context, id string, at time.Time) (core.Participant, bool, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return core.Participant{}, false, core.ErrParticipantNotFound
	}

	rows, err := s.pool.Query(ctx, `
		UPDATE participants
		SET status = 'checked_in', check_in_time = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING `+participantColumns,
		uid, at)
	if err != nil {
		return core.Participant{}, false, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanParticipant)
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return core.Participant{}, false, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}

	// Nothing updated: already checked in, or gone.
	p, err = s.GetParticipant(ctx, id)
	if err != nil {
		return core.Participant{}, false, err
	}
	return p, false, nil
}

// DeleteParticipant removes a participant. Used for out-of-band
// administration only.
func (s *Store) DeleteParticipant(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return core.ErrParticipantNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM participants WHERE id = $1`, uid)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrParticipantNotFound
	}
	return nil
}

// DeleteAllParticipants empties the participant table and returns the number
// of removed rows.
func (s *Store) DeleteAllParticipants(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM participants`)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrWriteFailed, err)
	}
	return tag.RowsAffected(), nil
}

func scanParticipant(row pgx.CollectableRow) (core.Participant, error) {
	var (
		id          uuid.UUID
		p           core.Participant
		company     pgtype.Text
		memo        pgtype.Text
		status      string
		checkInTime pgtype.Timestamptz
	)
	if err := row.Scan(&id, &p.Name, &company, &memo, &status, &checkInTime, &p.CreatedAt); err != nil {
		return core.Participant{}, err
	}

	p.ID = id.String()
	p.Company = company.String
	p.Memo = memo.String
	p.Status = core.Status(status)
	if checkInTime.Valid {
		t := checkInTime.Time
		p.CheckInTime = &t
	}
	return p, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

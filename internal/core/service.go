package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/checkin/internal/csv"
	"github.com/JonMunkholm/checkin/internal/logging"
)

// Store is the remote participant store.
//
// Implementations wrap read failures with ErrFetchFailed and write failures
// with ErrWriteFailed, and report unknown ids with ErrParticipantNotFound.
type Store interface {
	// ListParticipants returns every participant ordered by created_at.
	ListParticipants(ctx context.Context) ([]Participant, error)
	GetParticipant(ctx context.Context, id string) (Participant, error)
	InsertParticipant(ctx context.Context, d Draft) (Participant, error)
	// InsertParticipants writes all drafts in one transaction, in order.
	InsertParticipants(ctx context.Context, drafts []Draft) (int, error)
	// CheckIn moves a pending participant to checked_in at the given time.
	// It returns the current row and whether this call changed it.
	CheckIn(ctx context.Context, id string, at time.Time) (Participant, bool, error)
}

// Subscriber hands out change notification subscriptions.
type Subscriber interface {
	Subscribe() (<-chan Change, func())
}

// ChangePublisher receives change notifications from a store that produces
// them in-process.
type ChangePublisher interface {
	Publish(Change)
}

// VIPNotifier delivers VIP arrival notifications.
type VIPNotifier interface {
	NotifyVIP(ctx context.Context, p Participant) error
}

// DefaultVIPMarker flags a participant as VIP when found in the memo.
const DefaultVIPMarker = "重要"

// DefaultPreviewRows is how many rows PreviewCSV returns.
const DefaultPreviewRows = 5

// ServiceConfig holds the tunables of a Service.
type ServiceConfig struct {
	VIPMarker   string
	PreviewRows int
	CSV         csv.Options

	// Imports bounds concurrent CSV imports. Nil uses a default limiter.
	Imports *ImportLimiter

	// Now is the clock used for check-in times. Nil means time.Now.
	Now func() time.Time
}

// Service implements the participant operations shared by the REST surface
// and live sessions.
type Service struct {
	store    Store
	changes  Subscriber
	notifier VIPNotifier

	imports     *ImportLimiter
	parser      *csv.Parser
	marker      string
	previewRows int
	now         func() time.Time

	notifications sync.WaitGroup
}

// NewService creates a Service. notifier may be nil.
func NewService(store Store, changes Subscriber, notifier VIPNotifier, cfg ServiceConfig) *Service {
	s := &Service{
		store:       store,
		changes:     changes,
		notifier:    notifier,
		imports:     cfg.Imports,
		parser:      csv.NewParser(cfg.CSV),
		marker:      cfg.VIPMarker,
		previewRows: cfg.PreviewRows,
		now:         cfg.Now,
	}
	if s.imports == nil {
		s.imports = NewImportLimiter(DefaultMaxConcurrentImports, DefaultMaxImportWait)
	}
	if s.marker == "" {
		s.marker = DefaultVIPMarker
	}
	if s.previewRows <= 0 {
		s.previewRows = DefaultPreviewRows
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Listing is a filtered snapshot of the participant list. Counts cover the
// whole list, not just the filtered rows.
type Listing struct {
	Participants []Participant `json:"participants"`
	Counts       Counts        `json:"counts"`
}

// ListParticipants fetches the list and applies q.
func (s *Service) ListParticipants(ctx context.Context, q Query) (Listing, error) {
	list, err := s.store.ListParticipants(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("list participants: %w", err)
	}
	return Listing{
		Participants: Filter(list, q),
		Counts:       CountOf(list),
	}, nil
}

// AddParticipant validates d and inserts it as a pending participant.
// Devices see the new participant through the change feed.
func (s *Service) AddParticipant(ctx context.Context, d Draft) (Participant, error) {
	d, err := NewDraft(d.Name, d.Company, d.Memo)
	if err != nil {
		return Participant{}, err
	}

	p, err := s.store.InsertParticipant(ctx, d)
	if err != nil {
		return Participant{}, fmt.Errorf("add participant: %w", err)
	}

	logging.FromContext(ctx).Info("participant added",
		"participant_id", p.ID,
		"actor", ActorFromContext(ctx),
	)
	return p, nil
}

// ImportResult reports the outcome of a CSV import.
type ImportResult struct {
	Imported int  `json:"imported"`
	Empty    bool `json:"empty"`
}

// ImportCSV parses r and inserts every row in one transaction.
// A file without data rows is not an error: the result has Empty set.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	if err := s.imports.Acquire(ctx); err != nil {
		return ImportResult{}, fmt.Errorf("import: %w", err)
	}
	defer s.imports.Release()

	drafts, err := s.parseDrafts(r)
	if err != nil {
		return ImportResult{}, err
	}
	if len(drafts) == 0 {
		return ImportResult{Empty: true}, nil
	}

	n, err := s.store.InsertParticipants(ctx, drafts)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import: %w", err)
	}

	logging.FromContext(ctx).Info("participants imported",
		"rows", n,
		"actor", ActorFromContext(ctx),
	)
	return ImportResult{Imported: n}, nil
}

func (s *Service) parseDrafts(r io.Reader) ([]Draft, error) {
	var drafts []Draft
	for row, err := range s.parser.Rows(r) {
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
		}
		d, err := NewDraft(row.Name, row.Company, row.Memo)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.Line, err)
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// PreviewCSV returns the first rows of r as they would be imported.
func (s *Service) PreviewCSV(ctx context.Context, r io.Reader) ([]csv.Row, error) {
	rows, err := csv.Preview(s.parser.Rows(r), s.previewRows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
	}
	return rows, nil
}

// CheckInResult is the outcome of a check-in request. Changed is false when
// the participant was already checked in.
type CheckInResult struct {
	Participant Participant `json:"participant"`
	Changed     bool        `json:"changed"`
}

// CheckIn checks a participant in, reading the precondition from the store.
func (s *Service) CheckIn(ctx context.Context, id string) (CheckInResult, error) {
	p, err := s.store.GetParticipant(ctx, id)
	if err != nil {
		return CheckInResult{}, fmt.Errorf("check in %s: %w", id, err)
	}
	if p.CheckedIn() {
		return CheckInResult{Participant: p}, nil
	}
	return s.checkIn(ctx, id)
}

// checkIn performs the write and fires the VIP notification. The caller has
// already seen the participant as pending.
func (s *Service) checkIn(ctx context.Context, id string) (CheckInResult, error) {
	p, changed, err := s.store.CheckIn(ctx, id, s.now())
	if err != nil {
		return CheckInResult{}, fmt.Errorf("check in %s: %w", id, err)
	}
	if changed {
		logging.FromContext(ctx).Info("participant checked in",
			"participant_id", p.ID,
			"actor", ActorFromContext(ctx),
		)
		s.notifyVIP(ctx, p)
	}
	return CheckInResult{Participant: p, Changed: changed}, nil
}

// IsVIP reports whether p's memo carries the VIP marker.
func (s *Service) IsVIP(p Participant) bool {
	return strings.Contains(p.Memo, s.marker)
}

// notifyVIP sends the VIP notification in the background. Failures are
// logged and never reach the check-in caller.
func (s *Service) notifyVIP(ctx context.Context, p Participant) {
	if s.notifier == nil || !s.IsVIP(p) {
		return
	}

	ctx = context.WithoutCancel(ctx)
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		if err := s.notifier.NotifyVIP(ctx, p); err != nil {
			logging.FromContext(ctx).Warn("vip notification failed",
				"participant_id", p.ID,
				"error", err,
			)
		}
	}()
}

// WaitNotifications blocks until in-flight VIP notifications finish or ctx
// is done.
func (s *Service) WaitNotifications(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.notifications.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitImports blocks until running imports finish or ctx is done.
func (s *Service) WaitImports(ctx context.Context) error {
	return s.imports.WaitForDrain(ctx)
}

package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/checkin/internal/logging"
)

// ErrSessionClosed is returned by Session methods after Close.
var ErrSessionClosed = errors.New("session closed")

// Applied is emitted by Session.Run after each change is folded into the
// board. Reloaded is set instead of Change after a manual reload.
type Applied struct {
	Change   Change
	Reloaded bool
	Counts   Counts
}

// Session is the live view of one connected device. It owns a Board that
// follows the change feed.
type Session struct {
	ID string

	svc     *Service
	board   *Board
	changes <-chan Change
	cancel  func()
	reloads chan reloadRequest

	closeOnce sync.Once
	done      chan struct{}
}

type reloadRequest struct {
	ctx    context.Context
	result chan error
}

// OpenSession subscribes to the change feed and loads the board.
//
// The subscription is taken before the fetch so that no change committed
// while the fetch is running is lost; changes already contained in the
// fetched list are absorbed by the board.
func (s *Service) OpenSession(ctx context.Context) (*Session, error) {
	changes, cancel := s.changes.Subscribe()

	sess := &Session{
		ID:      uuid.NewString(),
		svc:     s,
		board:   NewBoard(nil),
		changes: changes,
		cancel:  cancel,
		reloads: make(chan reloadRequest),
		done:    make(chan struct{}),
	}

	list, err := s.store.ListParticipants(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open session: %w", err)
	}
	sess.board.Load(list)

	logging.FromContext(ctx).Debug("live session opened",
		"live_session", sess.ID,
		"participants", len(list),
	)
	return sess, nil
}

// Run folds change notifications into the board until ctx is done, the
// session is closed, or emit fails. It returns ErrFeedLost when the feed
// drops the subscription. Reload requests are served here too, so the board
// is only ever written from this goroutine.
func (s *Session) Run(ctx context.Context, emit func(Applied) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.done:
			return nil

		case c, ok := <-s.changes:
			if !ok {
				select {
				case <-s.done:
					return nil
				default:
					return ErrFeedLost
				}
			}
			s.board.Apply(c)
			if err := emit(Applied{Change: c, Counts: s.board.Counts()}); err != nil {
				return err
			}

		case req := <-s.reloads:
			err := s.reload(req.ctx)
			req.result <- err
			if err != nil {
				continue
			}
			if err := emit(Applied{Reloaded: true, Counts: s.board.Counts()}); err != nil {
				return err
			}
		}
	}
}

func (s *Session) reload(ctx context.Context) error {
	list, err := s.svc.store.ListParticipants(ctx)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	s.board.Load(list)
	return nil
}

// Reload refetches the list. It must be called while Run is active; the
// refreshed board is announced through Run's emit.
func (s *Session) Reload(ctx context.Context) error {
	req := reloadRequest{ctx: ctx, result: make(chan error, 1)}

	select {
	case s.reloads <- req:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckIn checks a participant in using this session's board as the
// precondition. Checking in an already checked-in participant is a no-op.
// The board itself changes only when the resulting notification arrives.
func (s *Session) CheckIn(ctx context.Context, id string) (CheckInResult, error) {
	select {
	case <-s.done:
		return CheckInResult{}, ErrSessionClosed
	default:
	}

	p, ok := s.board.Get(id)
	if !ok {
		return CheckInResult{}, fmt.Errorf("check in %s: %w", id, ErrParticipantNotFound)
	}
	if p.CheckedIn() {
		return CheckInResult{Participant: p}, nil
	}
	return s.svc.checkIn(ctx, id)
}

// View returns the board entries matching q.
func (s *Session) View(q Query) []Participant {
	return s.board.View(q)
}

// Snapshot returns the whole board.
func (s *Session) Snapshot() []Participant {
	return s.board.Snapshot()
}

// Counts returns the board totals.
func (s *Session) Counts() Counts {
	return s.board.Counts()
}

// Close releases the change subscription. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
	})
}

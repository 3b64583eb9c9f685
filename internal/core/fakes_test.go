package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakeFeed is a minimal in-memory change feed.
type fakeFeed struct {
	mu   sync.Mutex
	subs map[int]chan Change
	next int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: make(map[int]chan Change)}
}

func (f *fakeFeed) Subscribe() (<-chan Change, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	ch := make(chan Change, 64)
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if c, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(c)
			}
		})
	}
}

func (f *fakeFeed) Publish(c Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- c
	}
}

// drop closes every subscriber as if the upstream listener failed.
func (f *fakeFeed) drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

func (f *fakeFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// fakeStore keeps participants in memory and publishes changes to feed.
type fakeStore struct {
	mu       sync.Mutex
	rows     []Participant
	feed     ChangePublisher
	clock    time.Time
	seq      int
	listErr  error
	writeErr error
	checkIns int
}

func newFakeStore(feed ChangePublisher) *fakeStore {
	return &fakeStore{
		feed:  feed,
		clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Microsecond)
	return s.clock
}

func (s *fakeStore) ListParticipants(ctx context.Context) ([]Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, s.listErr)
	}
	out := make([]Participant, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

func (s *fakeStore) GetParticipant(ctx context.Context, id string) (Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.rows {
		if p.ID == id {
			return p, nil
		}
	}
	return Participant{}, ErrParticipantNotFound
}

func (s *fakeStore) insertLocked(d Draft) Participant {
	s.seq++
	p := Participant{
		ID:        fmt.Sprintf("p-%d", s.seq),
		Name:      d.Name,
		Company:   d.Company,
		Memo:      d.Memo,
		Status:    StatusPending,
		CreatedAt: s.tick(),
	}
	s.rows = append(s.rows, p)
	return p
}

func (s *fakeStore) InsertParticipant(ctx context.Context, d Draft) (Participant, error) {
	s.mu.Lock()
	if s.writeErr != nil {
		s.mu.Unlock()
		return Participant{}, fmt.Errorf("%w: %w", ErrWriteFailed, s.writeErr)
	}
	p := s.insertLocked(d)
	s.mu.Unlock()

	s.publish(InsertChange(p))
	return p, nil
}

func (s *fakeStore) InsertParticipants(ctx context.Context, drafts []Draft) (int, error) {
	s.mu.Lock()
	if s.writeErr != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, s.writeErr)
	}
	var inserted []Participant
	for _, d := range drafts {
		inserted = append(inserted, s.insertLocked(d))
	}
	s.mu.Unlock()

	for _, p := range inserted {
		s.publish(InsertChange(p))
	}
	return len(inserted), nil
}

func (s *fakeStore) CheckIn(ctx context.Context, id string, at time.Time) (Participant, bool, error) {
	s.mu.Lock()
	if s.writeErr != nil {
		s.mu.Unlock()
		return Participant{}, false, fmt.Errorf("%w: %w", ErrWriteFailed, s.writeErr)
	}
	for i, p := range s.rows {
		if p.ID != id {
			continue
		}
		if p.CheckedIn() {
			s.mu.Unlock()
			return p, false, nil
		}
		t := at
		p.Status = StatusCheckedIn
		p.CheckInTime = &t
		s.rows[i] = p
		s.checkIns++
		s.mu.Unlock()

		s.publish(UpdateChange(p))
		return p, true, nil
	}
	s.mu.Unlock()
	return Participant{}, false, ErrParticipantNotFound
}

func (s *fakeStore) publish(c Change) {
	if s.feed != nil {
		s.feed.Publish(c)
	}
}

func (s *fakeStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkIns
}

// fakeNotifier records VIP notifications.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []Participant
	err  error
}

func (n *fakeNotifier) NotifyVIP(ctx context.Context, p Participant) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, p)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

var errBoom = errors.New("boom")

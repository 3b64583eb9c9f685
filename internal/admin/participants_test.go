package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/checkin/internal/core"
)

type fakeStore struct {
	rows    map[string]bool
	deleted []string
	failAll error
}

func newFakeStore(ids ...string) *fakeStore {
	f := &fakeStore{rows: make(map[string]bool)}
	for _, id := range ids {
		f.rows[id] = true
	}
	return f
}

func (f *fakeStore) DeleteParticipant(_ context.Context, id string) error {
	if !f.rows[id] {
		return core.ErrParticipantNotFound
	}
	delete(f.rows, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) DeleteAllParticipants(context.Context) (int64, error) {
	if f.failAll != nil {
		return 0, f.failAll
	}
	n := int64(len(f.rows))
	f.rows = make(map[string]bool)
	return n, nil
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name        string
		ids         []string
		wantRemoved int
		wantErr     error
		wantLeft    int
	}{
		{"all found", []string{"p-1", "p-2"}, 2, nil, 1},
		{"blank ids skipped", []string{" ", "p-3", ""}, 1, nil, 2},
		{"stops at first missing", []string{"p-1", "nope", "p-2"}, 1, core.ErrParticipantNotFound, 2},
		{"nothing to do", nil, 0, nil, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore("p-1", "p-2", "p-3")
			a := &Participants{Store: store}

			n, err := a.Remove(context.Background(), tt.ids...)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Remove() error = %v, want %v", err, tt.wantErr)
			}
			if n != tt.wantRemoved {
				t.Errorf("Remove() = %d, want %d", n, tt.wantRemoved)
			}
			if len(store.rows) != tt.wantLeft {
				t.Errorf("%d rows left, want %d", len(store.rows), tt.wantLeft)
			}
		})
	}
}

func TestResetAll(t *testing.T) {
	store := newFakeStore("p-1", "p-2")
	a := &Participants{Store: store}

	n, err := a.ResetAll(context.Background())
	if err != nil {
		t.Fatalf("ResetAll() error = %v", err)
	}
	if n != 2 || len(store.rows) != 0 {
		t.Errorf("ResetAll() = %d with %d rows left, want 2 and 0", n, len(store.rows))
	}

	store.failAll = core.ErrWriteFailed
	if _, err := a.ResetAll(context.Background()); !errors.Is(err, core.ErrWriteFailed) {
		t.Errorf("ResetAll() error = %v, want ErrWriteFailed", err)
	}
}

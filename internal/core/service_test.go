package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, notifier VIPNotifier) (*Service, *fakeStore, *fakeFeed) {
	t.Helper()
	feed := newFakeFeed()
	store := newFakeStore(feed)
	svc := NewService(store, feed, notifier, ServiceConfig{
		Now: func() time.Time { return fixedNow },
	})
	return svc, store, feed
}

func waitNotifications(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.WaitNotifications(ctx); err != nil {
		t.Fatalf("WaitNotifications() error = %v", err)
	}
}

func TestService_AddParticipant(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	ctx := context.Background()

	p, err := svc.AddParticipant(ctx, Draft{Name: "  山田太郎 ", Company: "株式会社サンプル"})
	if err != nil {
		t.Fatalf("AddParticipant() error = %v", err)
	}
	if p.Name != "山田太郎" || p.Status != StatusPending || p.CheckInTime != nil {
		t.Errorf("AddParticipant() = %+v, want trimmed pending participant", p)
	}

	_, err = svc.AddParticipant(ctx, Draft{Name: "   "})
	if !errors.Is(err, ErrNameRequired) {
		t.Errorf("blank name error = %v, want ErrNameRequired", err)
	}

	_, err = svc.AddParticipant(ctx, Draft{Name: "山田太郎\n鈴木花子"})
	if !errors.Is(err, ErrControlChar) {
		t.Errorf("multi-line name error = %v, want ErrControlChar", err)
	}
	if len(store.rows) != 1 {
		t.Errorf("store has %d rows, want 1", len(store.rows))
	}
}

func TestService_AddParticipant_WriteFailure(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	store.writeErr = errBoom

	_, err := svc.AddParticipant(context.Background(), Draft{Name: "Alice"})
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("error = %v, want ErrWriteFailed", err)
	}
}

func TestService_ListParticipants(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	for _, d := range []Draft{{Name: "Tracy Co"}, {Name: "Bob", Company: "Acme"}, {Name: "Carol"}} {
		if _, err := svc.AddParticipant(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	listing, err := svc.ListParticipants(ctx, Query{Text: "ac"})
	if err != nil {
		t.Fatalf("ListParticipants() error = %v", err)
	}
	if len(listing.Participants) != 2 {
		t.Errorf("got %d participants, want 2", len(listing.Participants))
	}
	if listing.Counts.Total != 3 {
		t.Errorf("Counts.Total = %d, want 3 (unfiltered)", listing.Counts.Total)
	}
}

func TestService_ListParticipants_FetchFailure(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	store.listErr = errBoom

	_, err := svc.ListParticipants(context.Background(), Query{})
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("error = %v, want ErrFetchFailed", err)
	}
	if got := MapError(err).Code; got != "FETCH001" {
		t.Errorf("code = %s, want FETCH001", got)
	}
}

func TestService_ImportCSV(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	input := "氏名,会社名,メモ\n山田太郎,株式会社サンプル,\n鈴木花子,デザイン工房,重要: VIP対応必要"

	res, err := svc.ImportCSV(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if res.Imported != 2 || res.Empty {
		t.Errorf("ImportCSV() = %+v, want 2 imported", res)
	}
	if store.rows[0].Name != "山田太郎" || store.rows[1].Memo != "重要: VIP対応必要" {
		t.Errorf("rows = %+v", store.rows)
	}
	if !store.rows[0].CreatedAt.Before(store.rows[1].CreatedAt) {
		t.Error("file order not preserved by created_at")
	}
}

func TestService_ImportCSV_HeaderOnly(t *testing.T) {
	svc, store, _ := newTestService(t, nil)

	res, err := svc.ImportCSV(context.Background(), strings.NewReader("氏名,会社名,メモ\n"))
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if !res.Empty || res.Imported != 0 {
		t.Errorf("ImportCSV() = %+v, want empty result", res)
	}
	if len(store.rows) != 0 {
		t.Error("header-only import wrote rows")
	}
}

func TestService_ImportCSV_InvalidRowRejectsAll(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	input := "Alice\n" + strings.Repeat("x", MaxNameLength+1) + "\n"

	_, err := svc.ImportCSV(context.Background(), strings.NewReader(input))
	if !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("error = %v, want ErrFieldTooLong", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q does not name the line", err)
	}
	if len(store.rows) != 0 {
		t.Error("rows written despite invalid row")
	}
}

func TestService_ImportCSV_UnterminatedQuote(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	input := "\"山田太郎,株式会社A,\n鈴木花子,デザイン工房,\n田中一郎,マーケ,\n"

	res, err := svc.ImportCSV(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if res.Imported != 3 {
		t.Fatalf("Imported = %d, want 3", res.Imported)
	}
	for i, want := range []string{"山田太郎", "鈴木花子", "田中一郎"} {
		if store.rows[i].Name != want {
			t.Errorf("rows[%d].Name = %q, want %q", i, store.rows[i].Name, want)
		}
	}
}

func TestService_ImportCSV_Busy(t *testing.T) {
	feed := newFakeFeed()
	limiter := NewImportLimiter(1, 20*time.Millisecond)
	svc := NewService(newFakeStore(feed), feed, nil, ServiceConfig{Imports: limiter})

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer limiter.Release()

	_, err := svc.ImportCSV(context.Background(), strings.NewReader("Alice\n"))
	if !errors.Is(err, ErrTooManyImports) {
		t.Errorf("error = %v, want ErrTooManyImports", err)
	}
}

func TestService_PreviewCSV(t *testing.T) {
	feed := newFakeFeed()
	store := newFakeStore(feed)
	svc := NewService(store, feed, nil, ServiceConfig{PreviewRows: 2})

	rows, err := svc.PreviewCSV(context.Background(), strings.NewReader("name\na\nb\nc\n"))
	if err != nil {
		t.Fatalf("PreviewCSV() error = %v", err)
	}
	if len(rows) != 2 || rows[0].Name != "a" {
		t.Errorf("PreviewCSV() = %+v, want [a b]", rows)
	}
	if len(store.rows) != 0 {
		t.Error("preview wrote rows")
	}
}

func TestService_CheckIn(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	ctx := context.Background()
	p, _ := svc.AddParticipant(ctx, Draft{Name: "Alice"})

	res, err := svc.CheckIn(ctx, p.ID)
	if err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}
	if !res.Changed || !res.Participant.CheckedIn() {
		t.Errorf("CheckIn() = %+v, want changed", res)
	}
	if res.Participant.CheckInTime == nil || !res.Participant.CheckInTime.Equal(fixedNow) {
		t.Errorf("CheckInTime = %v, want %v", res.Participant.CheckInTime, fixedNow)
	}

	res, err = svc.CheckIn(ctx, p.ID)
	if err != nil {
		t.Fatalf("second CheckIn() error = %v", err)
	}
	if res.Changed {
		t.Error("second CheckIn() reported a change")
	}
	if store.writes() != 1 {
		t.Errorf("store saw %d check-in writes, want 1", store.writes())
	}

	_, err = svc.CheckIn(ctx, "ghost")
	if !errors.Is(err, ErrParticipantNotFound) {
		t.Errorf("unknown id error = %v, want ErrParticipantNotFound", err)
	}
}

func TestService_VIPNotification(t *testing.T) {
	tests := []struct {
		name      string
		memo      string
		notifyErr error
		wantSent  int
	}{
		{"marker present", "重要: VIP対応必要", nil, 1},
		{"marker absent", "通常", nil, 0},
		{"delivery failure does not fail check-in", "重要", errBoom, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{err: tt.notifyErr}
			svc, _, _ := newTestService(t, notifier)
			ctx := context.Background()
			p, _ := svc.AddParticipant(ctx, Draft{Name: "Hanako", Memo: tt.memo})

			res, err := svc.CheckIn(ctx, p.ID)
			if err != nil || !res.Changed {
				t.Fatalf("CheckIn() = %+v, %v, want success", res, err)
			}

			waitNotifications(t, svc)
			if got := notifier.count(); got != tt.wantSent {
				t.Errorf("sent %d notifications, want %d", got, tt.wantSent)
			}
		})
	}
}

func TestService_NoVIPNotificationWhenAlreadyCheckedIn(t *testing.T) {
	notifier := &fakeNotifier{}
	svc, _, _ := newTestService(t, notifier)
	ctx := context.Background()
	p, _ := svc.AddParticipant(ctx, Draft{Name: "Hanako", Memo: "重要"})

	svc.CheckIn(ctx, p.ID)
	svc.CheckIn(ctx, p.ID)
	waitNotifications(t, svc)

	if got := notifier.count(); got != 1 {
		t.Errorf("sent %d notifications, want 1", got)
	}
}

func TestService_CustomMarker(t *testing.T) {
	feed := newFakeFeed()
	svc := NewService(newFakeStore(feed), feed, nil, ServiceConfig{VIPMarker: "VIP"})

	if !svc.IsVIP(Participant{Memo: "guest VIP"}) {
		t.Error("custom marker not matched")
	}
	if svc.IsVIP(Participant{Memo: "重要"}) {
		t.Error("default marker matched with custom marker configured")
	}
}

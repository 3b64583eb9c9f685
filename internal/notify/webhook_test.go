package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JonMunkholm/checkin/internal/core"
	"github.com/JonMunkholm/checkin/internal/i18n"
)

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestWebhook_NotifyVIP(t *testing.T) {
	var got Payload
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	at := time.Date(2024, 3, 5, 1, 2, 3, 0, time.UTC)
	hook := NewWebhook(Config{URL: srv.URL, Location: tokyo(t), Locale: "ja"}, i18n.NewTranslator("ja"))

	err := hook.NotifyVIP(context.Background(), core.Participant{
		ID:          "p-1",
		Name:        "鈴木花子",
		Memo:        "重要: VIP対応必要",
		Status:      core.StatusCheckedIn,
		CheckInTime: &at,
	})
	if err != nil {
		t.Fatalf("NotifyVIP() error = %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
	want := Payload{
		Subject: "【VIP来場通知】重要人物が来場しました",
		Name:    "鈴木花子",
		Company: "なし",
		Memo:    "重要: VIP対応必要",
		Time:    "2024/3/5 10:02:03",
	}
	if got != want {
		t.Errorf("payload = %+v, want %+v", got, want)
	}
}

func TestWebhook_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	hook := NewWebhook(Config{URL: srv.URL}, i18n.NewTranslator("ja"))
	err := hook.NotifyVIP(context.Background(), core.Participant{Name: "A", Company: "Acme"})
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("NotifyVIP() error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestWebhook_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	hook := NewWebhook(Config{URL: url, Timeout: time.Second}, i18n.NewTranslator("ja"))
	if err := hook.NotifyVIP(context.Background(), core.Participant{Name: "A"}); err == nil {
		t.Fatal("NotifyVIP() error = nil, want transport error")
	}
}

func TestWebhook_DisabledIsNoop(t *testing.T) {
	hook := NewWebhook(Config{}, i18n.NewTranslator("ja"))
	if hook.Enabled() {
		t.Fatal("Enabled() = true without URL")
	}
	if err := hook.NotifyVIP(context.Background(), core.Participant{Name: "A"}); err != nil {
		t.Fatalf("NotifyVIP() error = %v, want nil", err)
	}
}

func TestWebhook_PayloadFallsBackToNow(t *testing.T) {
	now := time.Date(2024, 12, 31, 15, 0, 0, 0, time.UTC)
	hook := NewWebhook(Config{
		Location: tokyo(t),
		Locale:   "en",
		Now:      func() time.Time { return now },
	}, i18n.NewTranslator("ja"))

	p := hook.payload(core.Participant{Name: "Bob", Company: "Acme"})
	if p.Time != "2025/1/1 00:00:00" {
		t.Errorf("Time = %q, want 2025/1/1 00:00:00", p.Time)
	}
	if p.Company != "Acme" {
		t.Errorf("Company = %q, want Acme", p.Company)
	}
	if p.Subject != "[VIP arrival] An important guest has arrived" {
		t.Errorf("Subject = %q", p.Subject)
	}
}

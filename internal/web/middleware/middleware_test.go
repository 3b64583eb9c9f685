package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/checkin/internal/auth"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "untrusted proxy keeps socket address",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "203.0.113.7:5555",
			headers:    map[string]string{"X-Real-IP": "1.2.3.4"},
			want:       "203.0.113.7:5555",
		},
		{
			name:       "trusted proxy uses X-Real-IP",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:5555",
			headers:    map[string]string{"X-Real-IP": "1.2.3.4"},
			want:       "1.2.3.4",
		},
		{
			name:       "trusted single address uses first forwarded hop",
			trusted:    []string{"127.0.0.1"},
			remoteAddr: "127.0.0.1:5555",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"},
			want:       "198.51.100.1",
		},
		{
			name:       "invalid header is ignored",
			trusted:    []string{"127.0.0.1/32"},
			remoteAddr: "127.0.0.1:5555",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			want:       "127.0.0.1:5555",
		},
		{
			name:       "invalid trusted entry is skipped",
			trusted:    []string{"bogus", ""},
			remoteAddr: "127.0.0.1:5555",
			headers:    map[string]string{"X-Real-IP": "1.2.3.4"},
			want:       "127.0.0.1:5555",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Errorf("ClientIP() = %q, want 192.0.2.1", got)
	}
	req.RemoteAddr = "[::1]:80"
	if got := ClientIP(req); got != "::1" {
		t.Errorf("ClientIP() = %q, want ::1", got)
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"none", "", "", ""},
		{"bearer", "Bearer abc", "", "abc"},
		{"bearer case insensitive", "bearer abc", "", "abc"},
		{"cookie", "", "xyz", "xyz"},
		{"bearer wins over cookie", "Bearer abc", "xyz", "abc"},
		{"other scheme falls back to cookie", "Basic Zm9v", "xyz", "xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			if got := TokenFromRequest(req); got != tt.want {
				t.Errorf("TokenFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

type restorerFunc func(ctx context.Context, token string) (auth.Session, error)

func (f restorerFunc) Restore(ctx context.Context, token string) (auth.Session, error) {
	return f(ctx, token)
}

func TestRequireSession(t *testing.T) {
	restorer := restorerFunc(func(ctx context.Context, token string) (auth.Session, error) {
		if token == "good" {
			return auth.Session{ID: "s-1", Email: "desk@example.com", Token: token}, nil
		}
		return auth.Session{}, auth.ErrSessionRevoked
	})

	var failed error
	fail := func(w http.ResponseWriter, r *http.Request, err error) {
		failed = err
		w.WriteHeader(http.StatusUnauthorized)
	}

	var seen auth.Session
	h := RequireSession(restorer, fail)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.SessionFromContext(r.Context())
	}))

	tests := []struct {
		name    string
		token   string
		wantErr error
		wantID  string
	}{
		{"missing token", "", auth.ErrInvalidToken, ""},
		{"revoked", "bad", auth.ErrSessionRevoked, ""},
		{"valid", "good", nil, "s-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failed, seen = nil, auth.Session{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if tt.wantErr != nil {
				if !errors.Is(failed, tt.wantErr) {
					t.Errorf("error = %v, want %v", failed, tt.wantErr)
				}
				if rec.Code != http.StatusUnauthorized {
					t.Errorf("status = %d, want 401", rec.Code)
				}
				return
			}
			if failed != nil {
				t.Fatalf("unexpected error %v", failed)
			}
			if seen.ID != tt.wantID {
				t.Errorf("session id = %q, want %q", seen.ID, tt.wantID)
			}
		})
	}
}

func TestLogger_CapturesStatus(t *testing.T) {
	var inner http.ResponseWriter
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = w
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	ww, ok := inner.(*responseWriter)
	if !ok {
		t.Fatalf("handler got %T, want *responseWriter", inner)
	}
	if ww.bytes != len("short and stout") {
		t.Errorf("bytes = %d", ww.bytes)
	}
	if _, _, err := ww.Hijack(); err == nil {
		t.Error("Hijack() on a recorder should fail")
	}
}

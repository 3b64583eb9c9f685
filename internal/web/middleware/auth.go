package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/checkin/internal/auth"
	"github.com/JonMunkholm/checkin/internal/logging"
)

// SessionCookie carries the signed session token.
const SessionCookie = "checkin_session"

// SessionRestorer validates session tokens. *auth.Manager satisfies it.
type SessionRestorer interface {
	Restore(ctx context.Context, token string) (auth.Session, error)
}

// ErrorWriter renders a request failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// RequireSession admits requests that carry a valid session token in the
// session cookie or an Authorization: Bearer header. The restored session is
// stored in the request context (see auth.SessionFromContext).
func RequireSession(sessions SessionRestorer, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				fail(w, r, fmt.Errorf("%w: no session token", auth.ErrInvalidToken))
				return
			}

			sess, err := sessions.Restore(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Warn("auth: session rejected",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"error", err,
				)
				fail(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
		})
	}
}

// TokenFromRequest returns the bearer token, or the session cookie value.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

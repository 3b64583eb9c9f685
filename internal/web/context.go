package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/checkin/internal/auth"
	"github.com/JonMunkholm/checkin/internal/core"
	"github.com/JonMunkholm/checkin/internal/web/middleware"
)

// withActor tags the request context with the acting device for the
// activity log. RemoteAddr has already been resolved by TrustedRealIP.
func withActor(r *http.Request) context.Context {
	actor := core.Actor{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		actor.SessionID = sess.ID
	}
	return core.ContextWithActor(r.Context(), actor)
}

package core

import (
	"context"
	"log/slog"
)

type contextKey string

const ctxKeyActor contextKey = "actor"

// Actor identifies the device behind a mutation for the activity log.
type Actor struct {
	IPAddress string
	UserAgent string
	SessionID string
}

// ContextWithActor attaches the acting device to ctx.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

// ActorFromContext returns the acting device, or the zero Actor.
func ActorFromContext(ctx context.Context) Actor {
	a, _ := ctx.Value(ctxKeyActor).(Actor)
	return a
}

// LogValue implements slog.LogValuer.
func (a Actor) LogValue() slog.Value {
	var attrs []slog.Attr
	if a.IPAddress != "" {
		attrs = append(attrs, slog.String("ip", a.IPAddress))
	}
	if a.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", a.UserAgent))
	}
	if a.SessionID != "" {
		attrs = append(attrs, slog.String("auth_session", a.SessionID))
	}
	return slog.GroupValue(attrs...)
}

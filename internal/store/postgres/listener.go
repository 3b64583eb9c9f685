package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/checkin/internal/core"
)

// ChangeChannel is the NOTIFY channel written by the participants trigger.
const ChangeChannel = "participants_changes"

// Feed receives relayed notifications.
type Feed interface {
	Publish(core.Change)
	// Reset drops every subscriber; called when notifications may have been
	// missed so that devices reload.
	Reset()
}

// Listener holds one pooled connection in LISTEN mode and relays change
// notifications into a Feed.
type Listener struct {
	pool       *pgxpool.Pool
	feed       Feed
	retryDelay time.Duration
}

// NewListener creates a listener. retryDelay is the pause between a failure
// and the next LISTEN.
func NewListener(pool *pgxpool.Pool, feed Feed, retryDelay time.Duration) *Listener {
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	return &Listener{pool: pool, feed: feed, retryDelay: retryDelay}
}

// Run listens until ctx is cancelled. Each time the connection fails every
// subscriber is dropped, since changes committed while not listening are
// lost, and LISTEN is retried after the delay.
func (l *Listener) Run(ctx context.Context) {
	slog.Info("change listener started", "channel", ChangeChannel)

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			slog.Info("change listener stopped")
			return
		}

		slog.Error("change listener failed", "error", err, "retry_in", l.retryDelay)
		l.feed.Reset()

		select {
		case <-ctx.Done():
			slog.Info("change listener stopped")
			return
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	// A connection interrupted mid-wait is not reusable, so it never goes
	// back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Debug("listening for participant changes")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		c, err := decodeChange([]byte(n.Payload))
		if err != nil {
			slog.Warn("ignoring malformed change notification", "error", err)
			continue
		}
		l.feed.Publish(c)
	}
}

func decodeChange(payload []byte) (core.Change, error) {
	var c core.Change
	if err := json.Unmarshal(payload, &c); err != nil {
		return core.Change{}, err
	}
	switch c.Kind {
	case core.ChangeInsert, core.ChangeUpdate:
		if c.Record == nil || c.Record.ID == "" {
			return core.Change{}, fmt.Errorf("%s notification without participant", c.Kind)
		}
	case core.ChangeDelete:
		if c.ID == "" {
			return core.Change{}, fmt.Errorf("delete notification without id")
		}
	default:
		return core.Change{}, fmt.Errorf("unknown event %q", c.Kind)
	}
	return c, nil
}

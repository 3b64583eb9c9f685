package auth

// purge.go removes dead auth sessions in the background.
//
// Expired and revoked rows are useless once their tokens can no longer be
// presented. The job runs at start and then every interval until ctx ends.
// Failures are logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultPurgeInterval is how often dead sessions are removed.
const DefaultPurgeInterval = time.Hour

// StartPurge runs the purge job until ctx is cancelled.
func (m *Manager) StartPurge(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	slog.Info("session purge started", "interval", interval)

	m.purge(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session purge stopped")
			return
		case <-ticker.C:
			m.purge(ctx)
		}
	}
}

func (m *Manager) purge(ctx context.Context) {
	start := time.Now()
	n, err := m.store.PurgeSessions(ctx, m.now().UTC())
	if err != nil {
		slog.Error("session purge failed", "error", err)
		return
	}
	slog.Debug("purged auth sessions",
		"sessions_purged", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

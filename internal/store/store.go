// Package store opens the participant store selected by configuration.
//
// Both backends implement the same participant and auth contracts; they
// differ in how change notifications reach the hub. Postgres relays NOTIFY
// payloads through a listener goroutine, SQLite publishes in-process after
// each commit.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/checkin/internal/auth"
	"github.com/JonMunkholm/checkin/internal/config"
	"github.com/JonMunkholm/checkin/internal/core"
	"github.com/JonMunkholm/checkin/internal/store/postgres"
	"github.com/JonMunkholm/checkin/internal/store/sqlite"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Participants is the participant store plus the out-of-band operations used
// by administration tooling.
type Participants interface {
	core.Store
	Ping(ctx context.Context) error
	DeleteParticipant(ctx context.Context, id string) error
	DeleteAllParticipants(ctx context.Context) (int64, error)
}

// Backend is an opened store.
type Backend struct {
	Driver       string
	Participants Participants
	Accounts     auth.Store

	listen func(ctx context.Context)
	close  func()
}

// Open connects to the store described by cfg. Changes are delivered to
// feed, which may be nil for tools that never subscribe.
func Open(ctx context.Context, cfg config.StoreConfig, feed postgres.Feed) (*Backend, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case DriverPostgres:
		return openPostgres(ctx, cfg, feed)
	case DriverSQLite:
		return openSQLite(cfg, feed)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.StoreConfig, feed postgres.Feed) (*Backend, error) {
	if cfg.AutoMigrate {
		if err := postgres.Migrate(cfg.URL); err != nil {
			return nil, fmt.Errorf("migrate store: %w", err)
		}
		slog.Info("store migrations applied", "driver", DriverPostgres)
	}

	pool, err := postgres.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	st := postgres.New(pool)
	b := &Backend{
		Driver:       DriverPostgres,
		Participants: st,
		Accounts:     st,
		close:        pool.Close,
	}
	if feed != nil {
		listener := postgres.NewListener(pool, feed, cfg.ListenRetryDelay)
		b.listen = listener.Run
	}
	return b, nil
}

func openSQLite(cfg config.StoreConfig, feed postgres.Feed) (*Backend, error) {
	var pub core.ChangePublisher
	if feed != nil {
		pub = feed
	}
	st, err := sqlite.Open(cfg.URL, pub)
	if err != nil {
		return nil, err
	}
	slog.Info("connected to store", "driver", DriverSQLite)

	return &Backend{
		Driver:       DriverSQLite,
		Participants: st,
		Accounts:     st,
		close: func() {
			if err := st.Close(); err != nil {
				slog.Error("close sqlite store", "error", err)
			}
		},
	}, nil
}

// Listen relays database change notifications until ctx is cancelled.
// It returns immediately for backends that publish in-process.
func (b *Backend) Listen(ctx context.Context) {
	if b.listen == nil {
		return
	}
	b.listen(ctx)
}

// Close releases the store's connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

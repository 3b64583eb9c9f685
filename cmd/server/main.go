package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"unicode/utf8"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/checkin/internal/auth"
	"github.com/JonMunkholm/checkin/internal/config"
	"github.com/JonMunkholm/checkin/internal/core"
	"github.com/JonMunkholm/checkin/internal/csv"
	"github.com/JonMunkholm/checkin/internal/i18n"
	"github.com/JonMunkholm/checkin/internal/logging"
	"github.com/JonMunkholm/checkin/internal/notify"
	"github.com/JonMunkholm/checkin/internal/realtime"
	"github.com/JonMunkholm/checkin/internal/store"
	"github.com/JonMunkholm/checkin/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run wires the server and blocks until it stops. Deferred cleanup runs
// before main exits on error.
func run() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	msgs := i18n.NewTranslator(cfg.Locale.Language)

	if !cfg.Store.Configured() {
		slog.Warn("store is not configured, serving setup notice only",
			"code", core.CodeSetupRequired)
		return serve(web.NewSetupServer(cfg, msgs), cfg, func(context.Context) {})
	}

	ctx := context.Background()
	hub := realtime.NewHub(realtime.DefaultBuffer)

	backend, err := store.Open(ctx, cfg.Store, hub)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer backend.Close()

	webhook := notify.NewWebhook(notify.Config{
		URL:      cfg.Notify.WebhookURL,
		Timeout:  cfg.Notify.Timeout,
		Location: cfg.Locale.Location(),
		Locale:   cfg.Locale.Language,
	}, msgs)
	if !webhook.Enabled() {
		slog.Info("VIP webhook disabled")
	}

	delimiter, _ := utf8.DecodeRuneInString(cfg.Import.Delimiter)
	service := core.NewService(backend.Participants, hub, webhook, core.ServiceConfig{
		VIPMarker:   cfg.Notify.Marker,
		PreviewRows: cfg.Import.PreviewRows,
		CSV: csv.Options{
			Delimiter:   delimiter,
			HeaderWords: cfg.Import.HeaderWords,
		},
		Imports: core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
	})

	authn := auth.NewManager(backend.Accounts, auth.Config{
		Email:      cfg.Auth.SharedEmail,
		Key:        []byte(cfg.Store.Key),
		TTL:        cfg.Auth.SessionTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	})

	// Background jobs stop before the store closes.
	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	go authn.StartPurge(jobCtx, auth.DefaultPurgeInterval)
	go backend.Listen(jobCtx)

	server := web.NewServer(cfg, service, authn, msgs)

	return serve(server, cfg, func(shutdownCtx context.Context) {
		if err := service.WaitImports(shutdownCtx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		}
		if err := service.WaitNotifications(shutdownCtx); err != nil {
			slog.Warn("VIP notifications did not complete in time", "error", err)
		}
		cancelJobs()
		hub.Close()
	})
}

// serve runs server until SIGINT or SIGTERM. drain runs after the listener
// stops accepting requests and before serve returns. A listener failure is
// returned without waiting for a signal.
func serve(server *web.Server, cfg *config.Config, drain func(ctx context.Context)) error {
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		defer close(done)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		drain(shutdownCtx)
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr(), err)
	}
	<-done
	slog.Info("server stopped")
	return nil
}

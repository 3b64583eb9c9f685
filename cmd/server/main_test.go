package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/JonMunkholm/checkin/internal/config"
	"github.com/JonMunkholm/checkin/internal/i18n"
	"github.com/JonMunkholm/checkin/internal/web"
)

func TestServe_ReturnsListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = busy.Addr().(*net.TCPAddr).Port
	cfg.Server.ShutdownTimeout = time.Second

	drained := false
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(web.NewSetupServer(cfg, i18n.NewTranslator("ja")), cfg, func(context.Context) {
			drained = true
		})
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("serve() on a busy port returned nil")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve() blocked after the listener failed")
	}
	if drained {
		t.Error("drain ran although the server never started")
	}
}

// admin removes participants out of band. Connected boards receive the
// deletions live.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/checkin/internal/admin"
	"github.com/JonMunkholm/checkin/internal/config"
	"github.com/JonMunkholm/checkin/internal/store"
)

func main() {
	var remove string
	var reset bool
	var yes bool

	flag.StringVar(&remove, "remove", "", "comma-separated participant IDs to remove")
	flag.BoolVar(&reset, "reset", false, "remove every participant")
	flag.BoolVar(&yes, "yes", false, "confirm -reset")
	flag.Parse()

	if err := validate(remove, reset, yes); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if !cfg.Store.Configured() {
		fmt.Fprintln(os.Stderr, "STORE_URL and STORE_KEY must be set")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	backend, err := store.Open(ctx, cfg.Store, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: open store:", err)
		os.Exit(1)
	}
	defer backend.Close()

	participants := &admin.Participants{Store: backend.Participants}

	if reset {
		n, err := participants.ResetAll(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			backend.Close()
			os.Exit(1)
		}
		fmt.Printf("Removed %d participants\n", n)
		return
	}

	n, err := participants.Remove(ctx, splitIDs(remove)...)
	fmt.Printf("Removed %d participants\n", n)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		backend.Close()
		os.Exit(1)
	}
}

func validate(remove string, reset, yes bool) error {
	switch {
	case reset && remove != "":
		return fmt.Errorf("-reset cannot be combined with -remove")
	case reset && !yes:
		return fmt.Errorf("-reset removes every participant; pass -yes to confirm")
	case !reset && len(splitIDs(remove)) == 0:
		return fmt.Errorf("-remove or -reset is required")
	}
	return nil
}

func splitIDs(value string) []string {
	parts := strings.Split(value, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

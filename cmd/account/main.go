// account sets the password of the shared receptionist account.
//
// The password is taken from -password, then CHECKIN_PASSWORD, then the
// first line of standard input.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/checkin/internal/auth"
	"github.com/JonMunkholm/checkin/internal/config"
	"github.com/JonMunkholm/checkin/internal/store"
)

func main() {
	var password string
	flag.StringVar(&password, "password", "", "new shared password (default: CHECKIN_PASSWORD or stdin)")
	flag.Parse()

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

	password, err = readPassword(password, os.LookupEnv, os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	backend, err := store.Open(ctx, cfg.Store, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: open store:", err)
		os.Exit(1)
	}
	defer backend.Close()

	authn := auth.NewManager(backend.Accounts, auth.Config{
		Email:      cfg.Auth.SharedEmail,
		Key:        []byte(cfg.Store.Key),
		TTL:        cfg.Auth.SessionTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	if err := authn.SetPassword(ctx, password); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		backend.Close()
		os.Exit(1)
	}
	fmt.Printf("Password set for %s\n", authn.Email())
}

// readPassword picks the first non-empty source.
func readPassword(flagValue string, lookup func(string) (string, bool), stdin io.Reader) (string, error) {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v, nil
	}
	if v, ok := lookup("CHECKIN_PASSWORD"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", auth.ErrPasswordRequired
	}
	return line, nil
}

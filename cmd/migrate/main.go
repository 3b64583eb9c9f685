// migrate applies or rolls back the embedded store migrations for the
// configured driver.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/checkin/internal/config"
	"github.com/JonMunkholm/checkin/internal/store"
	"github.com/JonMunkholm/checkin/internal/store/postgres"
	"github.com/JonMunkholm/checkin/internal/store/sqlite"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up, down or version")
	steps := flag.Int("steps", 1, "number of migrations to roll back with -direction down")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.Store.URL) == "" {
		fmt.Fprintln(os.Stderr, "STORE_URL is not set; create a .env or set STORE_URL")
		os.Exit(1)
	}

	m, err := open(cfg.Store)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	if err := run(m, *direction, *steps); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func open(cfg config.StoreConfig) (*migrate.Migrate, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case store.DriverPostgres:
		return postgres.NewMigrate(cfg.URL)
	case store.DriverSQLite:
		db, err := sqlite.OpenForMigrate(cfg.URL)
		if err != nil {
			return nil, err
		}
		m, err := sqlite.NewMigrate(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func run(m *migrate.Migrate, direction string, steps int) error {
	var err error
	switch direction {
	case "up":
		err = m.Up()
	case "down":
		if steps <= 0 {
			return fmt.Errorf("-steps must be positive")
		}
		err = m.Steps(-steps)
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return nil
		}
		if verr != nil {
			return verr
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown direction %q: use up, down or version", direction)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		// Already at target version; success.
		fmt.Println("no change")
		return nil
	}
	return err
}

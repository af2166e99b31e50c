package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	appconfig "github.com/lexpoint/leadforms/internal/config"
	appmigrations "github.com/lexpoint/leadforms/migrations"
	"github.com/lexpoint/leadforms/pkg/logging"
)

// Usage: migrate [up | down <steps> | force <version> | version]
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("migrate")

	databaseURL := strings.TrimSpace(cfg.DatabaseURL)
	if databaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		fatal(logger, "open db", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		fatal(logger, "ping db", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		fatal(logger, "db driver", err)
	}

	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		fatal(logger, "source driver", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		fatal(logger, "create migrator", err)
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "force":
		version := intArg(logger, 2)
		if err := m.Force(version); err != nil {
			fatal(logger, "force version", err)
		}
		logger.Info("forced migration version", "version", version)
	case "down":
		steps := intArg(logger, 2)
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatal(logger, "migrate down", err)
		}
		logger.Info("rolled back migrations", "steps", steps)
	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			fatal(logger, "read version", err)
		}
		logger.Info("migration version", "version", version, "dirty", dirty)
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			fatal(logger, "migrate up", err)
		}
		logger.Info("migrations complete")
	default:
		logger.Error("unknown command", "command", cmd)
		os.Exit(2)
	}
}

func intArg(logger *logging.Logger, idx int) int {
	if len(os.Args) <= idx {
		logger.Error("missing numeric argument", "position", idx)
		os.Exit(2)
	}
	n, err := strconv.Atoi(os.Args[idx])
	if err != nil || n < 0 {
		logger.Error("invalid numeric argument", "value", os.Args[idx])
		os.Exit(2)
	}
	return n
}

func fatal(logger *logging.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"

	"kopikita-be/internal/config"
	"kopikita-be/internal/db"
	"kopikita-be/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

type migrator interface {
	Up() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
}

func main() {
	mode := flag.String("mode", "up", "migration mode: up, down or version")
	steps := flag.Int("steps", 1, "number of migrations to roll back in down mode")
	dir := flag.String("dir", "./migrations", "directory holding the migration files")
	flag.Parse()

	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()

	database, err := db.NewDatabase(cfg)
	if err != nil {
		logger.L().Fatal("database unavailable", zap.Error(err))
	}
	defer database.Close()

	m, err := newMigrator(database, cfg.DBName, *dir)
	if err != nil {
		logger.L().Fatal("failed to initialize migrations", zap.Error(err))
	}

	if err := run(m, *mode, *steps); err != nil {
		logger.L().Error("migration failed", zap.String("mode", *mode), zap.Error(err))
		os.Exit(1)
	}
}

func newMigrator(database *sql.DB, dbName, dir string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(database, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	return migrate.NewWithDatabaseInstance("file://"+dir, dbName, driver)
}

func run(m migrator, mode string, steps int) error {
	log := logger.L().With(zap.String("mode", mode))

	switch mode {
	case "up":
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("no new migrations to apply")
				return nil
			}
			return err
		}
		log.Info("migrations applied")
	case "down":
		if steps <= 0 {
			return fmt.Errorf("steps must be positive, got %d", steps)
		}
		if err := m.Steps(-steps); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("nothing to roll back")
				return nil
			}
			return err
		}
		log.Info("migrations rolled back", zap.Int("steps", steps))
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("no migrations applied yet")
			return nil
		}
		if err != nil {
			return err
		}
		log.Info("current schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
	default:
		return fmt.Errorf("unknown mode: %s (use 'up', 'down' or 'version')", mode)
	}
	return nil
}

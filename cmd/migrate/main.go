package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"word-party/internal/config"
	"word-party/internal/logging"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

const migrationsDir = "db/migrations"

func usage() {
	fmt.Fprintf(os.Stderr, "usage: migrate [-steps N] [-name NAME] up|down|version|create\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	name := flag.String("name", "", "migration name for create")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, true)

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	if command == "create" {
		if err := create(*name); err != nil {
			logger.Fatal().Err(err).Msg("create migration failed")
		}
		return
	}

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	m, err := migrate.New("file://"+migrationsDir, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("migration setup failed")
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-*steps)
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			logger.Fatal().Err(verr).Msg("read version failed")
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("database version")
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Str("command", command).Msg("database migration failed")
	}
	logger.Info().Str("command", command).Msg("database migrations applied")
}

func create(name string) error {
	if name == "" {
		return errors.New("migration name is required")
	}
	if strings.ContainsAny(name, " ") {
		return errors.New("migration name must not contain spaces")
	}
	version := time.Now().UTC().Format("20060102150405")
	base := fmt.Sprintf("%s_%s", version, name)
	upPath := filepath.Join(migrationsDir, base+".up.sql")
	downPath := filepath.Join(migrationsDir, base+".down.sql")

	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return fmt.Errorf("create migrations dir: %w", err)
	}
	if err := writeFile(upPath, "-- up migration\n"); err != nil {
		return fmt.Errorf("create up migration: %w", err)
	}
	if err := writeFile(downPath, "-- down migration\n"); err != nil {
		return fmt.Errorf("create down migration: %w", err)
	}
	log.Info().Str("up", upPath).Str("down", downPath).Msg("created migration")
	return nil
}

func writeFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

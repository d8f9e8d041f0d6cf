package main

import (
	"flag"
	"time"

	"word-party/internal/config"
	"word-party/internal/db"
	"word-party/internal/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	filePath := flag.String("file", "db/words.csv", "path to a category,word csv")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, true)

	conn, err := db.Open(cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}

	loaded, err := db.LoadWords(conn, *filePath)
	if err != nil {
		logger.Fatal().Err(err).Int("loaded", loaded).Str("file", *filePath).Msg("failed to load words")
	}
	logger.Info().Int("words", loaded).Str("file", *filePath).Msg("loaded words")
}

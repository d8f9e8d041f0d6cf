package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                     string
	DatabaseURL              string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	JWTSecret                string
	AllowedOrigins           []string
	LogLevel                 string
	LogPretty                bool
	GraceSeconds             int
	RoomTTLSeconds           int
	FinishedTTLSeconds       int
	SweepSeconds             int
	PingSeconds              int
	RelayTimeoutSeconds      int
	MessageRate              float64
	MessageBurst             int
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
}

func Default() Config {
	return Config{
		Port:                     "8080",
		LogLevel:                 "info",
		GraceSeconds:             20,
		RoomTTLSeconds:           3600,
		FinishedTTLSeconds:       300,
		SweepSeconds:             60,
		PingSeconds:              30,
		RelayTimeoutSeconds:      90,
		MessageRate:              20,
		MessageBurst:             40,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("PORT"); raw != "" {
		cfg.Port = raw
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.RedisDB = value
		}
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("LOG_PRETTY"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.LogPretty = value
		}
	}
	positive(&cfg.GraceSeconds, "GRACE_SECONDS")
	positive(&cfg.RoomTTLSeconds, "ROOM_TTL_SECONDS")
	positive(&cfg.FinishedTTLSeconds, "FINISHED_TTL_SECONDS")
	positive(&cfg.SweepSeconds, "SWEEP_SECONDS")
	positive(&cfg.PingSeconds, "PING_SECONDS")
	positive(&cfg.RelayTimeoutSeconds, "RELAY_TIMEOUT_SECONDS")
	if raw := os.Getenv("MESSAGE_RATE"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value > 0 {
			cfg.MessageRate = value
		}
	}
	positive(&cfg.MessageBurst, "MESSAGE_BURST")
	positive(&cfg.DBMaxOpenConns, "DB_MAX_OPEN_CONNS")
	positive(&cfg.DBMaxIdleConns, "DB_MAX_IDLE_CONNS")
	positive(&cfg.DBConnMaxLifetimeSeconds, "DB_CONN_MAX_LIFETIME_SECONDS")
	positive(&cfg.DBConnMaxIdleTimeSeconds, "DB_CONN_MAX_IDLE_SECONDS")
	return cfg
}

func positive(dst *int, key string) {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			*dst = value
		}
	}
}

func (c Config) Grace() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}

func (c Config) RoomTTL() time.Duration {
	return time.Duration(c.RoomTTLSeconds) * time.Second
}

func (c Config) FinishedTTL() time.Duration {
	return time.Duration(c.FinishedTTLSeconds) * time.Second
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepSeconds) * time.Second
}

func (c Config) PingInterval() time.Duration {
	return time.Duration(c.PingSeconds) * time.Second
}

func (c Config) RelayTimeout() time.Duration {
	return time.Duration(c.RelayTimeoutSeconds) * time.Second
}

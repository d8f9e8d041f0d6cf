package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"word-party/internal/cache"
	"word-party/internal/config"
	"word-party/internal/logging"
	"word-party/internal/session"
	"word-party/internal/transport"

	"github.com/rs/zerolog/log"
)

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".word-party.json"
	}
	return filepath.Join(dir, "word-party", "client.json")
}

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "room server websocket url")
	relay := flag.Bool("relay", false, "connect through the Redis relay at REDIS_ADDR instead of a websocket")
	statePath := flag.String("state", defaultStatePath(), "file caching the local player id and name")
	platformID := flag.String("platform-id", "", "platform user id; the player id becomes tg_<id>")
	name := flag.String("name", "", "display name")
	token := flag.String("token", "", "signed player token, required when the server has JWT_SECRET")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv := session.NewFileKV(*statePath)
	provider := session.StaticUser{ID: *platformID, Name: *name, Token: *token}
	id, err := session.ResolveIdentity(ctx, provider, kv)
	if err != nil {
		logger.Fatal().Err(err).Msg("resolve identity failed")
	}
	if *token != "" {
		id.Token = *token
	}
	if *name != "" {
		id.Name = *name
	}

	var tr transport.Transport
	if *relay {
		if cfg.RedisAddr == "" {
			logger.Fatal().Msg("REDIS_ADDR is required with -relay")
		}
		rdb, err := cache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer rdb.Close()
		tr = transport.NewRelay(rdb)
	} else {
		tr = transport.NewWebSocket(*serverURL, nil)
	}

	m := session.NewManager(tr, id, session.Options{Config: session.DefaultConfig(), Store: kv, Logger: &logger})
	if err := m.Connect(ctx); err != nil {
		logger.Fatal().Err(err).Msg("connect failed")
	}
	fmt.Printf("connected as %s (%s). Type help for commands.\n", m.Identity().Name, m.Identity().PlayerID)

	go printEvents(ctx, m)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			disconnect(m)
			return
		case line, ok := <-lines:
			if !ok {
				disconnect(m)
				return
			}
			if quit := run(ctx, m, line); quit {
				disconnect(m)
				return
			}
		}
	}
}

func disconnect(m *session.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Disconnect(ctx); err != nil {
		fmt.Printf("disconnect: %v\n", err)
	}
}

func printEvents(ctx context.Context, m *session.Manager) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.Events():
			if line := describe(ev); line != "" {
				fmt.Println(line)
			}
		}
	}
}

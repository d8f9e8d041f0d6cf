package server

import (
	"context"
	"net/http"
	"time"

	"word-party/internal/cache"
	"word-party/internal/config"
	"word-party/internal/room"
	"word-party/internal/transport"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const statsInterval = 5 * time.Minute

type Options struct {
	Config config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Logger *zerolog.Logger
}

// Server is the authoritative side of the room protocol. It owns the room
// engine and every client connection, whatever transport carried it.
type Server struct {
	cfg      config.Config
	engine   *room.Engine
	hub      *hub
	db       *gorm.DB
	rdb      *redis.Client
	archive  *Archive
	mirror   *cache.Mirror
	words    *wordBank
	identity identity
	log      zerolog.Logger
	nodeID   string

	base   context.Context
	cancel context.CancelFunc
}

func New(opts Options) *Server {
	registerValidators()
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      opts.Config,
		hub:      newHub(),
		db:       opts.DB,
		rdb:      opts.Redis,
		archive:  NewArchive(opts.DB, logger),
		words:    newWordBank(opts.DB),
		identity: newIdentity(opts.Config.JWTSecret),
		log:      logger,
		nodeID:   "node-" + uuid.NewString()[:8],
		base:     base,
		cancel:   cancel,
	}
	engineOpts := room.Options{
		Grace:         s.cfg.Grace(),
		RoomTTL:       s.cfg.RoomTTL(),
		FinishedTTL:   s.cfg.FinishedTTL(),
		SweepInterval: s.cfg.SweepInterval(),
		Archive:       s.archive,
		Words:         s.words.Pick,
		Logger:        &logger,
	}
	if s.rdb != nil {
		s.mirror = cache.NewMirror(s.rdb, s.nodeID, s.cfg.RoomTTL())
		engineOpts.Mirror = s.mirror
	}
	s.engine = room.NewEngine(s.hub, engineOpts)
	return s
}

// Engine exposes the room engine, mainly for tests and embedding.
func (s *Server) Engine() *room.Engine {
	return s.engine
}

func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	router.Use(cors.New(s.corsConfig()))

	router.GET("/", s.handleHome)
	router.GET("/health", s.handleHealth)
	router.GET("/ws", s.handleWebsocket)

	api := router.Group("/api")
	api.GET("/stats", s.handleStats)
	api.GET("/categories", s.handleCategories)
	api.GET("/rooms", s.handleRooms)
	api.GET("/rooms/:code", s.handleRoom)
	api.GET("/rooms/:code/history", s.handleHistory)
	return router
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if len(s.cfg.AllowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.AllowedOrigins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	return cfg
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/health" {
			return
		}
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("remote", c.ClientIP()).
			Msg("http request")
	}
}

// Run drives the background work: the room sweeper, the Redis relay bridge
// when Redis is configured, and periodic stats. It returns when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if n, err := s.words.Refresh(ctx); err != nil {
		s.log.Warn().Err(err).Msg("word bank load failed, using built-in words")
	} else {
		s.log.Info().Int("words", n).Msg("word bank loaded")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.engine.Run(ctx)
	}()

	relayErr := make(chan error, 1)
	if s.rdb != nil {
		bridge := newRelayBridge(s, s.rdb)
		go func() {
			relayErr <- bridge.Run(ctx)
		}()
	}

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case err := <-relayErr:
			if err != nil {
				s.log.Error().Err(err).Msg("relay bridge stopped")
			}
		case <-ticker.C:
			s.logStats()
		}
	}
}

func (s *Server) logStats() {
	stats := s.engine.Stats()
	s.log.Info().
		Int("rooms", stats.Rooms).
		Int("players", stats.Players).
		Int("online", stats.Online).
		Int("active_games", stats.ActiveGames).
		Int("connections", s.hub.Len()).
		Msg("stats")
}

// Shutdown closes every connection with GoingAway and stops the engine.
func (s *Server) Shutdown() {
	s.hub.closeAll(transport.CloseGoingAway, "server shutting down")
	s.cancel()
	s.engine.Close()
}

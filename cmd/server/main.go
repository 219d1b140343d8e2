package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dmsbot/session-server-go/internal/config"
	"github.com/dmsbot/session-server-go/internal/database"
	"github.com/dmsbot/session-server-go/internal/handler"
	"github.com/dmsbot/session-server-go/internal/jobs"
	"github.com/dmsbot/session-server-go/internal/middleware"
	"github.com/dmsbot/session-server-go/internal/redis"
	"github.com/dmsbot/session-server-go/internal/repository"
	"github.com/dmsbot/session-server-go/internal/service"
	"github.com/dmsbot/session-server-go/internal/sse"
	"github.com/dmsbot/session-server-go/internal/transport/sim"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	var sessionRepo repository.SessionRepository
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		if err := db.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		cancel()
		log.Info().Msg("database connected")

		sessionRepo = repository.NewSessionRepository(db.DB)
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory session registry")
		sessionRepo = repository.NewMemorySessionRepository()
	}

	var broker *sse.Broker
	var rateLimiter *service.RateLimiter
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		broker = sse.NewBroker(redisClient)
		defer broker.Close()

		rateLimiter = service.NewRateLimiter(redisClient.Client)
	} else {
		log.Warn().Msg("REDIS_URL not set, event streaming and pairing rate limits disabled")
	}

	// The transport is simulated in-process: pairing completes automatically a
	// moment after the code is issued.
	dialer := sim.NewDialer(sim.Options{AutoOpenDelay: 2 * time.Second})

	replySource := service.NewQuoteReplySource(cfg.ReplyAPIURL)
	supervisor := service.NewSupervisor(cfg, dialer, sessionRepo, replySource, broker)
	manager := service.NewSessionManager(cfg, supervisor, sessionRepo, broker)

	sessionHandler := handler.NewSessionHandler(cfg, manager)
	eventsHandler := handler.NewEventsHandler(broker, manager)

	r := newRouter(cfg, sessionHandler, eventsHandler, rateLimiter)

	cleanupJob := jobs.NewCleanupJob(sessionRepo, cfg.PendingTTL(), config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("bot", cfg.BotName).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// newRouter assembles the full route tree. Pairing is public, guarded only by
// the optional pairing password and per-IP rate limit; the session-management
// API sits behind the admin token.
func newRouter(
	cfg *config.Config,
	sessionHandler *handler.SessionHandler,
	eventsHandler *handler.EventsHandler,
	rateLimiter *service.RateLimiter,
) chi.Router {
	adminAuthMiddleware := middleware.NewAdminAuthMiddleware(cfg.AdminToken)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if rateLimiter != nil {
				pairLimit := middleware.NewIPRateLimitMiddleware(
					rateLimiter, config.PairRateLimit, config.PairRateLimitWindow, "pair",
				)
				r.Use(pairLimit.Handler)
			}
			r.Post("/pair", sessionHandler.Pair)
		})

		r.Group(func(r chi.Router) {
			r.Use(adminAuthMiddleware.Handler)

			r.Get("/info", func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]any{
					"botName":      cfg.BotName,
					"prefix":       cfg.CommandPrefix,
					"ownerNumber":  cfg.OwnerNumber,
					"supportEmail": cfg.SupportEmail,
				})
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/{identity}/events", eventsHandler.ServeHTTP)
				r.Mount("/", sessionHandler.Routes())
			})
		})
	})

	r.Get("/*", handler.StaticFileServer(cfg.StaticDir).ServeHTTP)

	return r
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/graphql-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/auth"
	"messaging-service/internal/chats"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/graph"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/pubsub"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/repositories/gormstore"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/users"
	"messaging-service/internal/ws"
)

const serviceName = "messaging-service"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	log.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	audit := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, serviceName, cfg.Environment)

	broker := pubsub.NewBroker(pubsub.WithBuffer(cfg.PubSubBuffer))
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	chatsSvc := chats.NewService(store.Chats, store.Messages, broker,
		chats.WithLoaderWait(cfg.LoaderWait),
		chats.WithMaxBatch(cfg.LoaderMaxBatch),
		chats.WithEventMirror(rabbitmq.NewEventMirror(publisher)),
	)
	resolver := graph.NewResolver(chatsSvc, users.NewAccounts(tokens, audit), store.Users,
		graph.WithLoaderWait(cfg.LoaderWait),
		graph.WithMaxBatch(cfg.LoaderMaxBatch),
	)
	schema, err := graph.NewSchema(resolver)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse graphql schema")
	}

	hub := ws.NewHub(publisher)
	router := newRouter(cfg, schema, resolver, tokens, hub, audit)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Closing the broker completes every open subscription stream before the sockets go away.
	broker.Close()
	hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("publisher close")
	}
	if err := closeStore(); err != nil {
		log.Error().Err(err).Msg("store close")
	}
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	log.Logger = log.With().Str("service", serviceName).Logger()
	zerolog.DefaultContextLogger = &log.Logger

	gin.SetMode(cfg.GinMode)
}

// openStore connects the configured backend and optionally resets it to the fixture data.
func openStore(ctx context.Context, cfg config.Config) (db.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		gdb, err := gormstore.Open(cfg.SQLitePath)
		if err != nil {
			return db.Store{}, nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return db.Store{}, nil, err
		}
		store := db.Store{
			Users:    gormstore.NewUserRepo(gdb),
			Chats:    gormstore.NewChatRepo(gdb),
			Messages: gormstore.NewMessageRepo(gdb),
		}
		if cfg.ResetDB {
			if err := gormstore.Truncate(gdb); err != nil {
				return db.Store{}, nil, err
			}
			if err := db.Seed(ctx, store, cfg.FakedDB); err != nil {
				return db.Store{}, nil, err
			}
			log.Info().Int("faked", cfg.FakedDB).Msg("sqlite store reset")
		}
		return store, sqlDB.Close, nil

	default:
		sdb, err := db.Connect(ctx, cfg.DatabaseDSN)
		if err != nil {
			return db.Store{}, nil, err
		}
		store := db.Store{
			Users:    repositories.NewUserRepo(sdb),
			Chats:    repositories.NewChatRepo(sdb),
			Messages: repositories.NewMessageRepo(sdb),
		}
		if cfg.ResetDB {
			if err := db.Truncate(ctx, sdb); err != nil {
				return db.Store{}, nil, err
			}
			if err := db.Seed(ctx, store, cfg.FakedDB); err != nil {
				return db.Store{}, nil, err
			}
			log.Info().Int("faked", cfg.FakedDB).Msg("postgres store reset")
		}
		return store, sdb.Close, nil
	}
}

func newRouter(cfg config.Config, schema *graphql.Schema, resolver *graph.Resolver, tokens *auth.TokenManager, hub *ws.Hub, audit *telemetry.AuditEmitter) *gin.Engine {
	router := gin.New()

	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/graphql/ws", "/metrics"})))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Identity(tokens))

	limiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP)

	gql := handlers.NewGraphQLHandler(schema, resolver, cfg.Environment == "production")
	router.POST("/graphql", limiter.Handler(), gql.Serve)
	router.GET("/graphql", limiter.Handler(), gql.Serve)

	wsHandler := ws.NewHandler(hub, schema, resolver, tokens, cfg.WSKeepAlive, originChecker(cfg.CORSOrigins))
	router.GET("/graphql/ws", wsHandler.Handle)

	router.GET("/_ping", handlers.Ping)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.PlaygroundEnabled {
		router.GET("/playground", handlers.Playground("/graphql"))
	}
	handlers.RegisterDebugRoutes(router, audit, hub, cfg.DebugRoutes)

	return router
}

// originChecker accepts websocket upgrades from the configured CORS origins.
func originChecker(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range origins {
			if allowed == "*" || strings.EqualFold(allowed, origin) {
				return true
			}
		}
		return false
	}
}

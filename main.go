package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	_ "repohub/docs" // swagger docs
	"repohub/internal/cache"
	"repohub/internal/config"
	"repohub/internal/database"
	"repohub/internal/handlers"
	"repohub/internal/middleware"
	"repohub/internal/repositories"
	"repohub/internal/seed"
	"repohub/internal/services"
	"repohub/pkg/logger"
	"repohub/pkg/observability"
	"repohub/pkg/rabbitmq"
)

const serviceName = "repohub"

// NewApp wires configuration, storage, cache, messaging and HTTP routes into
// a Fiber app. The returned cleanup func releases everything NewApp opened.
func NewApp(cfg *config.Config) (*fiber.App, func(), error) {
	ctx := context.Background()
	appLog := logger.Setup(cfg.LogLevel, cfg.LogPretty)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  serviceName,
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Error().Err(err).Msg("failed to shut down tracer provider")
		}
	})

	db, err := database.Connect(cfg, appLog)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() {
		if err := database.Close(db); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	})

	var opts []services.Option
	redisCache := cache.Connect(ctx, cfg.RedisURL, cfg.CacheTTL)
	if redisCache != nil {
		opts = append(opts, services.WithCache(redisCache))
		closers = append(closers, func() { _ = redisCache.Close() })
	}

	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			// Events are best effort; the API keeps serving without a broker.
			log.Warn().Err(err).Msg("rabbitmq unavailable, events disabled")
		} else {
			opts = append(opts, services.WithPublisher(mqClient))
			closers = append(closers, func() {
				if err := mqClient.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close rabbitmq client")
				}
			})
			startAuditConsumer(mqClient)
		}
	}

	// --- Services ---
	userService := services.NewUserService(repositories.NewGORMUserRepository(db), opts...)
	repoService := services.NewRepositoryService(repositories.NewGORMRepoRepository(db), userService, opts...)

	if cfg.SeedDemoData {
		if _, err := seed.NewSeeder(userService, repoService, seed.DefaultOptions).Run(ctx); err != nil {
			log.Error().Err(err).Msg("failed to seed demo data")
		}
	}

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(userService)
	repoHandler := handlers.NewRepositoryHandler(repoService)
	healthHandler := handlers.NewHealthHandler(healthChecks(db, redisCache, mqClient))

	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		ErrorHandler: handlers.ErrorHandler,
	})

	// --- Middleware ---
	prom := observability.HTTPMetrics(serviceName)
	prom.RegisterAt(app, "/metrics")

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(cors.New())
	app.Use(middleware.Tracing())
	app.Use(middleware.RequestLogger())
	app.Use(prom.Middleware)

	app.Get("/health", healthHandler.HandleHealth)

	// --- API Routes ---
	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)
	guarded := api.Group("", middleware.ProtectWrites(cfg.JWTSecret))
	userHandler.RegisterRoutes(guarded)
	repoHandler.RegisterRoutes(guarded)

	return app, cleanup, nil
}

func healthChecks(db *gorm.DB, redisCache *cache.RedisCache, mqClient *rabbitmq.Client) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if redisCache != nil {
		checks["cache"] = redisCache.Ping
	}
	if mqClient != nil {
		checks["rabbitmq"] = func(context.Context) error { return mqClient.Healthy() }
	}
	return checks
}

// startAuditConsumer logs every published domain event from the audit queue.
func startAuditConsumer(mqClient *rabbitmq.Client) {
	go func() {
		log.Info().Str("queue", rabbitmq.DefaultAuditQueue).Msg("starting audit consumer")
		if err := mqClient.ConsumeEvents(rabbitmq.DefaultAuditQueue, "#", rabbitmq.HandleAuditMessage); err != nil {
			log.Error().Err(err).Msg("audit consumer stopped")
		}
	}()
}

//	@title						Repohub API
//	@version					1.0
//	@description				Users and their source repositories.
//	@BasePath					/api
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	app, cleanup, err := NewApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer cleanup()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("port", cfg.AppPort).Str("env", cfg.Env).Msg("starting server")
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-quit
	log.Info().Msg("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}
	log.Info().Msg("server gracefully stopped")
}

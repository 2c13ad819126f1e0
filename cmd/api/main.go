package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/hospital-appointments/internal/adapters/cache"
	"github.com/zatekoja/hospital-appointments/internal/adapters/database"
	"github.com/zatekoja/hospital-appointments/internal/adapters/events"
	"github.com/zatekoja/hospital-appointments/internal/adapters/search"
	"github.com/zatekoja/hospital-appointments/internal/api/handlers"
	"github.com/zatekoja/hospital-appointments/internal/api/middleware"
	"github.com/zatekoja/hospital-appointments/internal/api/routes"
	"github.com/zatekoja/hospital-appointments/internal/application/services"
	"github.com/zatekoja/hospital-appointments/internal/domain/providers"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/auth"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/redis"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/hospital-appointments/internal/infrastructure/observability"
	"github.com/zatekoja/hospital-appointments/migrations"
	"github.com/zatekoja/hospital-appointments/pkg/config"
	"github.com/zatekoja/hospital-appointments/pkg/secrets"
)

func main() {
	// Load configuration
	if _, err := secrets.ApplyFromEnv(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load Vault credentials: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Env)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	location, err := cfg.App.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid time zone")
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL())
	if err != nil {
		log.Fatal().Err(err).Msg("AUTH_JWT_SECRET must be set")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	if cfg.Database.AutoMigrate {
		applied, err := pgClient.Migrate(ctx, migrations.FS)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Strs("applied", applied).Msg("Schema up to date")
	}

	// Redis backs the shared cache and the event bus; without it both fall
	// back to in-process implementations suitable for a single instance.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable; using in-process cache and event bus")
		lru, err := cache.NewLRUAdapter(cfg.Cache.LRUSize)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create LRU cache")
		}
		cacheProvider = lru
		eventBus = events.NewMemoryEventBus()
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	}

	// Search is optional; doctor listings fall back to Postgres
	var searchRepo repositories.DoctorSearchRepository
	if cfg.Typesense.URL != "" {
		typesenseClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Typesense client")
		} else {
			if err := typesenseClient.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to init Typesense schema")
			}
			searchRepo = search.NewTypesenseAdapter(typesenseClient)
		}
	}

	// Initialize adapters
	categoryRepo := database.NewCategoryAdapter(pgClient)
	hospitalRepo := database.NewHospitalAdapter(pgClient)
	doctorRepo := database.NewDoctorAdapter(pgClient)
	scheduleRepo := database.NewScheduleAdapter(pgClient)
	appointmentRepo := database.NewAppointmentAdapter(pgClient)
	reviewRepo := database.NewReviewAdapter(pgClient)

	// Initialize services
	slotService := services.NewSlotService(doctorRepo, hospitalRepo, scheduleRepo, appointmentRepo, cacheProvider, services.SlotServiceOptions{
		CacheTTLSeconds: cfg.Cache.SlotTTLSeconds,
		Location:        location,
		Metrics:         metrics,
	})
	indexer := services.NewDoctorIndexer(doctorRepo, scheduleRepo, searchRepo)
	catalogService := services.NewCatalogService(categoryRepo, hospitalRepo, doctorRepo, scheduleRepo, searchRepo, indexer, slotService)
	appointmentService := services.NewAppointmentService(appointmentRepo, slotService, services.AppointmentServiceOptions{
		PreventUserOverlap: cfg.Booking.PreventUserOverlap,
		EventBus:           eventBus,
		Metrics:            metrics,
	})
	aggregator := services.NewRatingAggregator(doctorRepo, reviewRepo, indexer)
	reviewService := services.NewReviewService(reviewRepo, appointmentRepo, aggregator, eventBus, nil)

	cacheInvalidationService := services.NewCacheInvalidationService(cacheProvider, eventBus)
	if err := cacheInvalidationService.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start cache invalidation service")
	}

	// Initialize handlers
	catalogHandler := handlers.NewCatalogHandler(catalogService)
	appointmentHandler := handlers.NewAppointmentHandler(appointmentService, slotService)
	reviewHandler := handlers.NewReviewHandler(reviewService, aggregator)
	sseHandler := handlers.NewSSEHandler(eventBus)

	router := routes.NewRouter(
		catalogHandler,
		appointmentHandler,
		reviewHandler,
		sseHandler,
		middleware.NewCacheMiddleware(cacheProvider),
		tokens,
		doctorRepo,
		hospitalRepo,
		cfg.App.AllowedOrigins,
		metrics,
	)

	// Create HTTP server. WriteTimeout stays zero so event streams are not cut off.
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	// Cancelling the base context ends open event streams
	cancel()
	cacheInvalidationService.Stop()
	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing event bus")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}

// Package main provides the entrypoint for the road weather dashboard API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/roadweather/roadweather/internal/api"
	"github.com/roadweather/roadweather/internal/api/middleware"
	"github.com/roadweather/roadweather/internal/dashboard"
	"github.com/roadweather/roadweather/internal/database"
	"github.com/roadweather/roadweather/internal/resilience"
	"github.com/roadweather/roadweather/internal/session"
	"github.com/roadweather/roadweather/internal/telemetry"
	"github.com/roadweather/roadweather/internal/warehouse"
	"github.com/roadweather/roadweather/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// A missing .env is normal outside local development.
	envErr := godotenv.Load()

	cfg, err := loadConfig()

	level, levelErr := zerolog.ParseLevel(cfg.LogLevel)
	if levelErr != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	telemetryCfg, telemetryErr := telemetry.ConfigFromEnv(Version, cfg.Env)
	serviceName := telemetryCfg.ServiceName
	if serviceName == "" {
		serviceName = "roadweather-api"
	}

	log := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if telemetryErr != nil {
		log.Fatal().Err(telemetryErr).Msg("invalid telemetry configuration")
	}
	if envErr == nil {
		log.Debug().Msg("loaded .env")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Str("city", cfg.Dataset.City).
		Str("warehouse_mode", cfg.WarehouseMode).
		Msg("starting road weather API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Float64("sample_ratio", telemetryCfg.SampleRatio).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Warehouse
	var repo warehouse.Repository
	switch cfg.WarehouseMode {
	case modeMemory:
		repo = warehouse.NewSampleRepository(cfg.Dataset.City, time.Now())
		log.Warn().Msg("serving built-in sample data")
	default:
		pool, err := database.Connect(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to warehouse")
		}
		defer pool.Close()
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("warehouse connected")
		repo = warehouse.NewPostgresRepository(pool, cfg.Dataset)
	}

	registry := resilience.NewRegistry()
	guarded := warehouse.NewGuardedRepository(repo, registry)

	dash, err := dashboard.NewService(dashboard.ServiceConfig{
		Repository: guarded,
		City:       cfg.Dataset.City,
		CacheSize:  cfg.CacheSize,
		Logger:     log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize dashboard service")
	}

	sessions := session.NewService(session.ServiceConfig{
		Repository: session.NewInMemoryRepository(),
		Reloader:   dash,
		IdleTTL:    cfg.SessionIdleTTL,
		Logger:     log,
	})

	refreshCfg := worker.DefaultRefreshConfig()
	if len(cfg.WarmRanges) > 0 {
		refreshCfg.Ranges = cfg.WarmRanges
	}
	warmup := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: refreshCfg,
		Logger: log,
		Loader: dash,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		RequireTLS:  cfg.RequireTLS,
		Dashboard:   dash,
		Sessions:    sessions,
		Warehouse:   guarded,
		Registry:    registry,
		Warmup:      warmup,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Warm the cache in the background; the server answers meanwhile.
	g.Go(func() error {
		warmup.Run(gctx)
		return nil
	})

	g.Go(func() error {
		worker.NewSessionSweeper(sessions, cfg.SweepInterval, log).Start(gctx)
		return nil
	})

	if cfg.PubSubProject != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProject,
			SubscriptionName: cfg.PubSubSubscription,
			Processor:        worker.NewMessageProcessor(warmup, dash, guarded, log),
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		g.Go(func() error {
			return handler.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1) //nolint:gocritic // intentional exit, cleanup is best-effort
	}

	log.Info().Msg("server stopped")
}

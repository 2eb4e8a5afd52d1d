package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"pdfslot/docs"
	"pdfslot/internal/config"
	handlers "pdfslot/internal/http/handler"
	"pdfslot/internal/http/middleware"
	"pdfslot/internal/lock"
	"pdfslot/internal/logger"
	"pdfslot/internal/otel"
	"pdfslot/internal/repository/slot"
	"pdfslot/internal/retry"
	"pdfslot/internal/service"
	"pdfslot/internal/storage"
)

// @title PDF Slot API
// @version 1.0
// @description Stores exactly one PDF and serves the latest upload.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.Location())

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server_stopped")
	}
}

func run(cfg *config.AppConfig, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing_shutdown_failed")
		}
	}()

	// Blob store connection: a failed first dial leaves the service up and answering 503
	dial, err := storage.NewDialer(cfg, log)
	if err != nil {
		return err
	}
	conn := storage.NewConn(cfg.Storage.Backend, dial, retry.FromConfig(cfg.Storage.Retry), log,
		storage.WithPingTimeout(cfg.Storage.Timeouts.ServerSelection))
	defer conn.Close()
	if err := conn.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("storage_unavailable_at_startup")
	}
	go conn.Watch(ctx, cfg.Storage.ReconnectInterval)

	locker, closeLocker, err := newLocker(cfg, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	docRepo := slot.New(conn, locker, cfg.Lock.Timeout, log)
	docSvc := service.NewDocumentService(docRepo, conn, service.NewMetrics(reg), log)

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             cfg.MaxUploadBytes,
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(log))

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	app.Use(promMiddleware.Handler())

	app.Use(middleware.CORS(cfg.AllowOrigins))

	handlers.RegisterRoutes(app, docSvc, log,
		middleware.RateLimit(cfg.UploadLimit.RequestsPerSecond, cfg.UploadLimit.Burst))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("storage_backend", cfg.Storage.Backend).
			Str("lock_backend", cfg.Lock.Backend).
			Msg("server_started")
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutdown_requested")
	}

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}

func newLocker(cfg *config.AppConfig, log zerolog.Logger) (lock.Locker, func(), error) {
	switch cfg.Lock.Backend {
	case "", "local":
		return lock.NewLocal(), func() {}, nil
	case "redis":
		if cfg.Redis.URL == "" {
			return nil, nil, errors.New("REDIS_URL is required when LOCK_BACKEND=redis")
		}
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis parse: %w", err)
		}
		client := redis.NewClient(opts)
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("redis_close_failed")
			}
		}
		return lock.NewRedis(client, cfg.Redis.LockKey, cfg.Redis.LockTTL, log), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}
}

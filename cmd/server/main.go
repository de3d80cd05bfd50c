package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/invoicing/backend/internal/infrastructure/bootstrap"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/tasks"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/invoicing/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "invoicing-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := bootstrap.NewLogger(cfg, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting invoicing API",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	tel, err := bootstrap.NewTelemetry(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	defer shutdownWithTimeout(log, "telemetry", tel.Shutdown)

	db, dbMetrics, err := bootstrap.OpenDatabase(ctx, cfg, tel, log)
	if err != nil {
		return err
	}
	defer func() {
		if dbMetrics != nil {
			dbMetrics.Stop()
		}
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		if cfg.App.IsProduction() {
			return err
		}
		log.Warn("Redis unavailable; token revocation is process-local", zap.Error(err))
	} else {
		defer func() { _ = redisClient.Close() }()
	}

	queue := asynq.NewClient(tasks.RedisConnOpt(cfg.Redis))
	defer func() { _ = queue.Close() }()
	enqueuer := tasks.NewEnqueuer(queue, tasks.EnqueuerConfig{
		MaxRetry: cfg.Worker.EmailMaxRetry,
		Timeout:  cfg.Worker.EmailTimeout,
	}, log.Named("tasks"))

	billing, err := bootstrap.NewBilling(ctx, cfg, db, tel, log, enqueuer)
	if err != nil {
		return err
	}
	if err := billing.Start(ctx); err != nil {
		return err
	}
	defer shutdownWithTimeout(log, "billing", billing.Close)
	billing.Metrics.StartPeriodicCollection(ctx)

	var blacklist auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
	if redisClient != nil {
		blacklist = auth.NewRedisTokenBlacklist(redisClient)
	}
	authenticator := auth.NewAuthenticator(auth.NewJWTService(cfg.JWT), blacklist, log.Named("auth"))

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		limiter.StartCleanup(ctx)
		defer limiter.Stop()
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	engine, err := router.New(router.Deps{
		HTTP:          cfg.HTTP,
		ServiceName:   serviceName,
		Logger:        log,
		Authenticator: authenticator,
		RateLimiter:   limiter,
		Meter:         tel.Meter.Meter("invoicing.http"),
	}, router.Handlers{
		Invoices: handler.NewInvoiceHandler(billing.Invoices),
		Clients:  handler.NewClientHandler(billing.Clients, billing.Invoices),
		Health:   handler.NewHealthHandler(healthChecks(db.Ping, redisClient)...),
		Auth:     handler.NewAuthHandler(authenticator),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited gracefully")
	return nil
}

// healthChecks probes the database and, when connected, Redis. Redis only
// degrades readiness: the API keeps serving with process-local fallbacks.
func healthChecks(dbPing func(context.Context) error, rdb *redis.Client) []handler.HealthCheck {
	checks := []handler.HealthCheck{{Name: "database", Check: dbPing}}
	if rdb != nil {
		checks = append(checks, handler.HealthCheck{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			Optional: true,
		})
	}
	return checks
}

const cleanupTimeout = 10 * time.Second

func shutdownWithTimeout(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Shutdown failed", zap.String("component", name), zap.Error(err))
	}
}

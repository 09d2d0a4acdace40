// Package main is the entry point for the print broker daemon.
package main

import (
	"context"
	"crypto/tls"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Bidon15/printspool/internal/auth"
	"github.com/Bidon15/printspool/internal/config"
	"github.com/Bidon15/printspool/internal/database"
	"github.com/Bidon15/printspool/internal/dispatcher"
	"github.com/Bidon15/printspool/internal/handler/api"
	"github.com/Bidon15/printspool/internal/middleware"
	"github.com/Bidon15/printspool/internal/printer"
	"github.com/Bidon15/printspool/internal/protocol"
	"github.com/Bidon15/printspool/internal/queue"
	"github.com/Bidon15/printspool/internal/ratelimit"
	"github.com/Bidon15/printspool/internal/repository"
	"github.com/Bidon15/printspool/internal/server"
	"github.com/Bidon15/printspool/internal/service"
	"github.com/Bidon15/printspool/internal/validation"
)

func main() {
	// Setup structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Starting print broker",
		slog.String("wire_addr", cfg.Server.Addr()),
		slog.String("admin_addr", cfg.Admin.Addr()),
		slog.Bool("tls", cfg.Security.TLSEnabled),
	)

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	if err := db.RunMigrations(cfg.Database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	// Connect to Redis (optional, admin API rate limiting only)
	var redis *database.Redis
	if cfg.Redis.Enabled {
		redis, err = database.NewRedis(cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redis.Close()
		logger.Info("Connected to Redis")
	}

	// Repositories
	pool := db.Pool()
	jobRepo := repository.NewJobRepository(pool)
	clientRepo := repository.NewClientRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)
	txm := repository.NewTxManager(pool)

	// Token manager and rate limiter
	tokens, err := auth.NewManager(cfg.Security.JWTSecretKey, cfg.Security.TokenExpiry(), logger)
	if err != nil {
		log.Fatalf("Failed to create token manager: %v", err)
	}
	limiter := ratelimit.New(cfg.Security.RequestsPerMinute, cfg.Security.Burst(), logger)
	defer limiter.Stop()

	// Queue and services
	q := queue.New()
	jobs, err := service.NewJobService(jobRepo, clientRepo, statsRepo, q, cfg.Spool.Dir, logger)
	if err != nil {
		log.Fatalf("Failed to create job service: %v", err)
	}
	users := service.NewUserService(userRepo, tokens, logger)
	stats := service.NewStatsService(statsRepo, clientRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Printer backend and dispatcher
	backend := printer.SelectBackend(ctx, cfg.Printer.UseMock, logger)
	printers := printer.NewManager(backend, cfg.Printer.Name, logger)

	disp := dispatcher.New(q, jobRepo, clientRepo, statsRepo, txm, printers, dispatcher.Config{
		PollTimeout: cfg.Dispatcher.PollTimeout,
		RetryDelay:  cfg.Dispatcher.RetryDelay,
	}, logger)

	// Re-enqueue jobs that were pending when the broker last stopped.
	restored, err := jobs.RestoreQueue(ctx, cfg.Queue.RestoreLimit)
	if err != nil {
		log.Fatalf("Failed to restore queue: %v", err)
	}
	if restored > 0 {
		logger.Info("Queue restored from store", slog.Int("jobs", restored))
	}

	disp.Start(ctx)
	defer disp.Stop()

	// Wire protocol server
	wireHandler := server.NewHandler(server.Deps{
		Codec:             protocol.NewCodec(),
		Tokens:            tokens,
		Limiter:           limiter,
		Validator:         validation.NewValidator(cfg.Security.MaxFileSizeBytes()),
		Jobs:              jobs,
		JobRepo:           jobRepo,
		Clients:           clientRepo,
		Queue:             q,
		Printers:          printers,
		DispatcherRunning: disp.Running,
	}, logger)

	wire := server.New(cfg.Server, wireHandler, logger)

	var tlsCfg *tls.Config
	if cfg.Security.TLSEnabled {
		tlsCfg, err = server.TLSConfig(cfg.Security)
		if err != nil {
			log.Fatalf("Failed to build TLS config: %v", err)
		}
	}
	if err := wire.Listen(tlsCfg); err != nil {
		log.Fatalf("Failed to bind wire listener: %v", err)
	}

	go func() {
		if err := wire.Serve(ctx); err != nil {
			logger.Error("Wire server stopped", slog.String("error", err.Error()))
		}
	}()

	// Admin HTTP API
	var admin *http.Server
	if cfg.Admin.Enabled {
		router := api.NewRouter(api.Deps{
			Tokens:    tokens,
			Users:     users,
			Jobs:      jobs,
			Stats:     stats,
			Wire:      wireHandler,
			DB:        db,
			Redis:     redis,
			RateLimit: middleware.DefaultRateLimitConfig(),
			Logger:    logger,
		})

		admin = &http.Server{
			Addr:         cfg.Admin.Addr(),
			Handler:      router,
			ReadTimeout:  cfg.Admin.ReadTimeout,
			WriteTimeout: cfg.Admin.WriteTimeout,
			IdleTimeout:  time.Minute,
		}

		go func() {
			logger.Info("Admin API listening", slog.String("addr", admin.Addr))
			if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Admin API error: %v", err)
			}
		}()
	}

	// Maintenance loops
	go cleanupLoop(ctx, jobs, cfg.Spool, logger)
	go uptimeLoop(ctx, stats, logger)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down", slog.String("signal", sig.String()))
	cancel()

	// Stop intake first, then the worker. Jobs still queued remain
	// pending in the store and are restored on the next boot.
	wire.Shutdown()
	disp.Stop()
	q.Close()

	if admin != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Error("Admin API shutdown error", slog.String("error", err.Error()))
		}
	}

	logger.Info("Broker stopped gracefully")
}

// cleanupLoop periodically deletes finished jobs past the retention
// window along with their spool files.
func cleanupLoop(ctx context.Context, jobs service.JobService, cfg config.SpoolConfig, logger *slog.Logger) {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := jobs.CleanupOld(ctx, cfg.RetentionDays)
			if err != nil {
				logger.Error("Job cleanup failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				logger.Info("Old jobs cleaned up", slog.Int64("removed", removed))
			}
		}
	}
}

// uptimeLoop records accumulated uptime into the daily stats row.
func uptimeLoop(ctx context.Context, stats service.StatsService, logger *slog.Logger) {
	const interval = time.Hour

	started := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := stats.RecordUptime(ctx, time.Since(started)); err != nil {
				logger.Error("Uptime record failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Package main is the entry point of the Kinderpedia sync worker.
//
// The worker owns the whole sync cycle:
//   - 15-minute refresh of the mutable current-week timeline
//   - weekly archive transition after the Monday rollover
//   - resumable backward backfill of the full enrollment history
//   - REST interface for reading the archive and triggering a re-sync
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kinderhub/kinderpedia-sync/config"
	"github.com/kinderhub/kinderpedia-sync/internal/application/backfill"
	"github.com/kinderhub/kinderpedia-sync/internal/application/eventhandler"
	"github.com/kinderhub/kinderpedia-sync/internal/application/poll"
	"github.com/kinderhub/kinderpedia-sync/internal/application/query"
	"github.com/kinderhub/kinderpedia-sync/internal/infrastructure/external/kinderpedia"
	"github.com/kinderhub/kinderpedia-sync/internal/infrastructure/messaging"
	"github.com/kinderhub/kinderpedia-sync/internal/infrastructure/persistence/postgres"
	"github.com/kinderhub/kinderpedia-sync/internal/infrastructure/persistence/redis"
	"github.com/kinderhub/kinderpedia-sync/internal/infrastructure/scheduler"
	"github.com/kinderhub/kinderpedia-sync/internal/infrastructure/scheduler/jobs"
	httpiface "github.com/kinderhub/kinderpedia-sync/internal/interface/http"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Logging
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting kinderpedia sync worker",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnection(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Name,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	log.Info("checking database migrations...")
	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	store := postgres.NewArchiveStore(dbConn)
	childRepo := postgres.NewChildRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Redis (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var weekCache *redis.WeekCache
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisClient, err := redis.NewClient(ctx, redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("failed to connect to Redis, current-week caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			weekCache = redis.NewWeekCache(redisClient)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Event bus
	// ─────────────────────────────────────────────────────────────────────────
	eventBus := messaging.NewInMemoryEventBus(log)
	eventBus.Subscribe(eventhandler.NewSyncMilestones(log))

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Kinderpedia API client
	// ─────────────────────────────────────────────────────────────────────────
	clientConfig := kinderpedia.DefaultConfig(
		cfg.Kinderpedia.BaseURL, cfg.Kinderpedia.Email, cfg.Kinderpedia.Password)
	clientConfig.APIKey = cfg.Kinderpedia.APIKey
	clientConfig.Timeout = cfg.Kinderpedia.RequestTimeout
	clientConfig.MinRequestInterval = cfg.Kinderpedia.MinRequestInterval
	clientConfig.CircuitBreaker.FailureThreshold = cfg.Kinderpedia.CircuitBreakerThreshold
	clientConfig.CircuitBreaker.Timeout = cfg.Kinderpedia.CircuitBreakerTimeout
	clientConfig.Logger = log
	client := kinderpedia.NewClient(clientConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. Application services
	// ─────────────────────────────────────────────────────────────────────────
	walkerConfig := backfill.DefaultConfig()
	walkerConfig.StepDelay = cfg.Sync.BackfillStepDelay
	walkerConfig.EmptyWeekRetryLimit = cfg.Sync.EmptyWeekRetryLimit
	walker := backfill.NewWalker(client, store, childRepo, eventBus, log,
		cfg.App.Location, walkerConfig)

	var pollCache poll.WeekCache
	var queryCache query.WeekCache
	if weekCache != nil {
		pollCache = weekCache
		queryCache = weekCache
	}
	coordinator := poll.New(client, client, childRepo, store, walker,
		pollCache, eventBus, log, cfg.App.Location)
	queries := query.NewService(childRepo, store, queryCache, client, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. Scheduler
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(log, cfg.App.Location)

	if err := sched.Register(
		jobs.NewRefreshCurrentWeekJob(coordinator),
		scheduler.NewIntervalSchedule(cfg.Sync.RefreshInterval),
	); err != nil {
		return fmt.Errorf("failed to register refresh job: %w", err)
	}
	if err := sched.Register(
		jobs.NewArchiveLastWeekJob(coordinator),
		scheduler.NewWeeklySchedule(time.Monday, cfg.Sync.ArchiveHour, cfg.Sync.ArchiveMinute, cfg.App.Location),
	); err != nil {
		return fmt.Errorf("failed to register archive job: %w", err)
	}
	if err := sched.Register(
		jobs.NewRefreshChildrenJob(coordinator),
		scheduler.NewIntervalSchedule(cfg.Sync.ChildrenRefreshInterval),
	); err != nil {
		return fmt.Errorf("failed to register children job: %w", err)
	}
	if err := sched.Register(
		jobs.NewBackfillRecoveryJob(coordinator),
		scheduler.NewIntervalSchedule(cfg.Sync.BackfillRecoveryInterval),
	); err != nil {
		return fmt.Errorf("failed to register backfill job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		log.Info("stopping scheduler...")
		_ = sched.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP interface
	// ─────────────────────────────────────────────────────────────────────────
	handlers := httpiface.NewHandlers(queries, coordinator, dbConn, log)
	server := httpiface.NewServer(httpiface.Config{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, handlers, log)
	serverErr := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. Startup sync
	// ─────────────────────────────────────────────────────────────────────────
	// Discover children, refresh the live week once, then kick the
	// backfill walks in the background. A restart mid-backfill resumes
	// from the persisted checkpoints.
	go func() {
		if err := coordinator.RefreshChildren(ctx); err != nil {
			log.Error("startup child discovery failed, will retry on schedule", "error", err)
			return
		}
		if err := coordinator.RefreshCurrentWeek(ctx); err != nil {
			log.Warn("startup current-week refresh failed", "error", err)
		}
		if err := coordinator.EnsureBackfilled(ctx); err != nil {
			log.Warn("startup backfill pass ended with error", "error", err)
		}
	}()

	log.Info("kinderpedia sync worker is running",
		"http", fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		"refresh_interval", cfg.Sync.RefreshInterval.String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			log.Error("http server failed", "error", err)
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch cfg.Observability.LogLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" || cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

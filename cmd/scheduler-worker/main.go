package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/replenish-backend/internal/cron"
	"github.com/angelmondragon/replenish-backend/internal/scheduler"
	"github.com/angelmondragon/replenish-backend/internal/subscriptions"
	"github.com/angelmondragon/replenish-backend/pkg/config"
	"github.com/angelmondragon/replenish-backend/pkg/db"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/metrics"
	"github.com/angelmondragon/replenish-backend/pkg/migrate"
	"github.com/angelmondragon/replenish-backend/pkg/outbox"
	"github.com/angelmondragon/replenish-backend/pkg/redis"
)

const lockKeyFormat = "rpl:scheduler-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "scheduler-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "scheduler-worker"

	logg = logger.New(logger.Options{
		ServiceName: "scheduler-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler lock", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	dueScanJob, err := scheduler.NewDueScanJob(scheduler.DueScanJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repo:          subscriptions.NewRepository(dbClient.DB()),
		Outbox:        outboxService,
		Metrics:       metricsCollector,
		OrderLeadTime: cfg.Subscriptions.OrderLeadTime,
		BatchLimit:    cfg.Scheduler.BatchLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create due-scan job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(dueScanJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Scheduler.ScanInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting scheduler worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "scheduler worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "scheduler worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/followup/internal/config"
	boltInfra "github.com/fastygo/followup/internal/infrastructure/boltdb"
	"github.com/fastygo/followup/internal/infrastructure/monitor"
	"github.com/fastygo/followup/internal/infrastructure/notify"
	pgInfra "github.com/fastygo/followup/internal/infrastructure/postgres"
	"github.com/fastygo/followup/internal/infrastructure/queue"
	redisInfra "github.com/fastygo/followup/internal/infrastructure/redis"
	"github.com/fastygo/followup/internal/services"
	"github.com/fastygo/followup/internal/services/lifecycle"
	"github.com/fastygo/followup/pkg/logger"
	"github.com/fastygo/followup/repository"
	boltRepo "github.com/fastygo/followup/repository/boltdb"
	pgRepo "github.com/fastygo/followup/repository/postgres"
	redisRepo "github.com/fastygo/followup/repository/redis"
)

// app holds the components shared by the serve and tick commands.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	manager    *lifecycle.Manager
	monitor    *monitor.Monitor
	reminders  repository.ReminderRepository
	queue      services.EventQueue
	metrics    *services.Metrics
	dispatcher *services.Dispatcher
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}
	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		AppName:  cfg.AppName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger error: %w", err)
	}
	return cfg, zapLogger, nil
}

// bootstrap opens the configured store and queue and registers their
// shutdown hooks. Callers own manager.Shutdown.
func bootstrap(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  zapLogger,
		manager: lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger),
		monitor: monitor.New(cfg.Scheduler.HealthInterval, zapLogger),
	}

	var redisClient *goRedis.Client
	if cfg.UsesRedis() {
		client, err := redisInfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			return a, fmt.Errorf("redis connection failed: %w", err)
		}
		redisClient = client
		a.manager.RegisterCloser("redis", client)
		a.monitor.Add("redis", func(ctx context.Context) error { return redisInfra.Ping(ctx, client) })
	}

	var store repository.ReminderRepository
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			return a, fmt.Errorf("migrations failed: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
		if err != nil {
			return a, fmt.Errorf("postgres connection failed: %w", err)
		}
		a.manager.Register("postgres", func(context.Context) error {
			pool.Close()
			return nil
		})
		a.monitor.Add("postgres", func(ctx context.Context) error { return pgInfra.Ping(ctx, pool) })
		store = pgRepo.NewReminderRepository(pool)
	case config.DriverRedis:
		store = redisRepo.NewReminderRepository(redisClient, cfg.Store.CASAttempts)
	default:
		db, err := boltInfra.Open(cfg.Bolt.Path, boltRepo.Buckets...)
		if err != nil {
			return a, fmt.Errorf("failed to open bolt store: %w", err)
		}
		a.manager.RegisterCloser("bolt", db)
		a.monitor.Add("bolt", func(context.Context) error { return boltInfra.Ping(db) })
		store = boltRepo.NewReminderRepository(db)
	}
	a.reminders = repository.NewResilientRepository(store, repository.RetryPolicy{
		InitialInterval: cfg.Store.RetryInitial,
		MaxElapsedTime:  cfg.Store.RetryMaxElapsed,
		MaxRetries:      uint64(max(cfg.Store.RetryMax, 0)),
	}, zapLogger.Named("store"))

	if cfg.Queue.Driver == config.QueueRedis {
		a.queue = queue.NewRedis(redisClient, cfg.Queue.Key, cfg.Queue.Capacity)
	} else {
		mem := queue.NewMemory(cfg.Queue.Capacity)
		a.queue = mem
		a.manager.RegisterCloser("notification_queue", mem)
	}

	metrics, err := services.NewMetrics(cfg.AppName, prometheus.DefaultRegisterer)
	if err != nil {
		return a, err
	}
	a.metrics = metrics

	a.dispatcher = services.NewDispatcher(a.notifier(), a.queue, metrics, zapLogger.Named("dispatcher"))
	return a, nil
}

func (a *app) notifier() services.Notifier {
	if a.cfg.Notifier.WebhookURL == "" {
		return notify.NewLogNotifier(a.logger.Named("notifier"))
	}
	a.logger.Info("delivering notifications through webhook", zap.String("url", a.cfg.Notifier.WebhookURL))
	return notify.NewWebhookNotifier(notify.WebhookConfig{
		URL:     a.cfg.Notifier.WebhookURL,
		Token:   a.cfg.Notifier.WebhookToken,
		Timeout: a.cfg.Notifier.WebhookTimeout,
	}, nil)
}

func (a *app) newScheduler() *services.Scheduler {
	return services.NewScheduler(
		a.reminders,
		a.dispatcher,
		a.monitor,
		a.metrics,
		a.logger.Named("scheduler"),
		services.SchedulerConfig{
			Interval:    a.cfg.Scheduler.Interval,
			Lookback:    a.cfg.Scheduler.Lookback,
			Concurrency: a.cfg.Scheduler.Concurrency,
		},
	)
}

// Package main runs the background email worker: queued attendance token
// emails are delivered with retry and dead-lettering.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eduevent/backend/config"
	"github.com/eduevent/backend/internal/emaillogs"
	"github.com/eduevent/backend/internal/events"
	"github.com/eduevent/backend/internal/i18n"
	"github.com/eduevent/backend/internal/metrics"
	"github.com/eduevent/backend/internal/notify"
	"github.com/eduevent/backend/internal/registrations"
	"github.com/eduevent/backend/internal/timewindow"
	"github.com/eduevent/backend/internal/worker"
	"github.com/eduevent/backend/pkg/database"
	"github.com/eduevent/backend/pkg/queue"
	"github.com/eduevent/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if !cfg.Redis.Enabled() {
		logger.Fatal("REDIS_ADDR is required for the worker")
	}
	loc, err := cfg.Events.Location()
	if err != nil {
		logger.Fatal("event timezone", zap.Error(err))
	}
	lang, err := i18n.ParseLanguage(cfg.Locale.Default)
	if err != nil {
		logger.Fatal("default locale", zap.Error(err))
	}
	tr, err := i18n.NewTranslator(lang)
	if err != nil {
		logger.Fatal("translations", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var mailer notify.Mailer = notify.NewLogMailer(logger)
	if cfg.Email.BrevoAPIKey != "" {
		mailer = notify.NewBrevoMailer(cfg.Email.BrevoAPIKey,
			notify.Sender{Name: cfg.Email.FromName, Email: cfg.Email.FromAddress}, cfg.Email.Timeout())
	}
	notifier := notify.NewTokenNotifier(mailer, emaillogs.NewRepository(pool), tr, loc, logger)

	policy := timewindow.Policy{
		Lead:            cfg.Events.CheckInLead(),
		DefaultDuration: cfg.Events.DefaultDuration(),
		Location:        loc,
	}
	registrationSvc := registrations.NewService(events.NewRepository(pool), registrations.NewRepository(pool), notifier,
		registrations.WithLogger(logger),
		registrations.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		registrations.WithPolicy(policy),
		registrations.WithNotifyTimeout(cfg.Email.Timeout()))

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(jobQueue, registrationSvc, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		processor.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

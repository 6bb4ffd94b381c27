package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gdevlabs/triage-agent/internal/agent"
	"github.com/gdevlabs/triage-agent/internal/approval"
	"github.com/gdevlabs/triage-agent/internal/classify"
	"github.com/gdevlabs/triage-agent/internal/config"
	"github.com/gdevlabs/triage-agent/internal/coord"
	"github.com/gdevlabs/triage-agent/internal/dedup"
	"github.com/gdevlabs/triage-agent/internal/events"
	"github.com/gdevlabs/triage-agent/internal/handlers"
	"github.com/gdevlabs/triage-agent/internal/logging"
	"github.com/gdevlabs/triage-agent/internal/metrics"
	"github.com/gdevlabs/triage-agent/internal/middleware"
	"github.com/gdevlabs/triage-agent/internal/notify"
	"github.com/gdevlabs/triage-agent/internal/tools"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := logging.Init(cfg.AppName, cfg.LogLevel, os.Getenv("LOG_FORMAT"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := coord.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer store.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = store.Ping(pingCtx)
	cancel()
	if err != nil {
		logger.Error("coordination store unreachable",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	eventStore, err := events.Open(cfg.SQLiteLogPath)
	if err != nil {
		logger.Error("event log unavailable", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer eventStore.Close()

	if cfg.ClassifierURL == "" {
		logger.Error("CLASSIFIER_URL is required")
		os.Exit(1)
	}
	classifier := classify.NewHTTPClassifier(cfg.ClassifierURL, cfg.ClassifierAPIKey, cfg.ClassifierTimeout)

	var notifier notify.Notifier = notify.Noop{}
	if cfg.ApprovalQueueURL != "" {
		sqsClient, err := notify.NewSQSClient(ctx)
		if err != nil {
			logger.Error("sqs client init failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		notifier = notify.NewSQSPublisher(sqsClient, cfg.ApprovalQueueURL)
	}

	svc := agent.NewService(
		cfg,
		classifier,
		approval.NewStore(store, cfg.ApprovalTTL, logger),
		tools.NewRegistry(),
		eventStore,
		notifier,
		logger,
	)

	if cfg.AppEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Signature(cfg.WebhookSecret),
		middleware.RateLimit(store, cfg.RateLimitRPM, cfg.RateLimitBurst, logger),
	)
	handlers.RegisterRoutes(r, handlers.HandlerConfig{
		AppName: cfg.AppName,
		Service: svc,
		Dedup:   dedup.NewCache(store, cfg.DedupTTL),
		Metrics: metrics.New(),
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("env", cfg.AppEnv))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

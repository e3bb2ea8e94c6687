package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	httpadapter "github.com/couchcryptid/temperature-predictor/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/temperature-predictor/internal/adapter/kafka"
	"github.com/couchcryptid/temperature-predictor/internal/config"
	"github.com/couchcryptid/temperature-predictor/internal/conversion"
	"github.com/couchcryptid/temperature-predictor/internal/events"
	"github.com/couchcryptid/temperature-predictor/internal/observability"
	"github.com/couchcryptid/temperature-predictor/internal/predictor"
	"github.com/couchcryptid/temperature-predictor/internal/session"
	"github.com/couchcryptid/temperature-predictor/internal/supervisor"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// The model is loaded on the first conversion, not here.
	artifact := predictor.ArtifactPath(cfg.AppRoot, cfg.ModelPath)
	models := predictor.NewHandle(predictor.FileLoader(artifact, cfg.ModelCacheSize, metrics), logger, metrics)
	logger.Info("model configured", "path", artifact, "cache_size", cfg.ModelCacheSize)

	store, err := session.Open(cfg.SessionStore, cfg.SessionPath, cfg.SessionTTL, logger)
	if err != nil {
		logger.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	sessions := session.NewManager(store, session.CookieOptions{
		Name:   cfg.SessionCookieName,
		Secure: cfg.SessionCookieSecure,
		MaxAge: cfg.SessionTTL,
	}, logger, metrics)

	tree := supervisor.NewTree(logger, supervisor.Config{ShutdownTimeout: cfg.ShutdownTimeout})

	if sweeper, ok := store.(session.Sweeper); ok {
		tree.AddBackground(session.NewJanitor(sweeper, cfg.SessionCleanupInterval, clockwork.NewRealClock(), logger, metrics))
	}

	// Conversion events (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	var (
		opts   []conversion.Option
		writer *kafkaadapter.Writer
		ready  = []sharedobs.ReadinessChecker{sessions}
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		relay := events.NewRelay(writer, logger, metrics, events.Options{
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.BatchFlushInterval,
			BufferSize:    cfg.EventBufferSize,
		})
		tree.AddBackground(relay)
		opts = append(opts, conversion.WithPublisher(relay))
		ready = append(ready, relay)
		logger.Info("conversion events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("conversion events disabled")
	}

	svc := conversion.NewService(models, logger, metrics, opts...)

	page, err := httpadapter.NewPage(svc, sessions, logger, metrics)
	if err != nil {
		logger.Error("failed to build page", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:              cfg.HTTPAddr,
		ShutdownTimeout:   cfg.ShutdownTimeout,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, page, sessions.Middleware, httpadapter.AllReady(ready...), logger, metrics)
	tree.AddAPI(srv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		<-errCh
	case err := <-errCh:
		logger.Error("supervisor exited", "error", err)
	}
	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		logger.Warn("services did not stop in time", "count", len(unstopped))
	}

	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("session store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

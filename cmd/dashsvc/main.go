// Command dashsvc runs the live commerce dashboard pipeline: it consumes
// domain events from Kafka, applies them to Postgres, fans accepted events
// out to websocket subscribers, and serves the dashboard HTTP API.
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

	"github.com/redis/go-redis/v9"

	"github.com/shoppulse/dashsvc/internal/api"
	"github.com/shoppulse/dashsvc/internal/config"
	"github.com/shoppulse/dashsvc/internal/consumer"
	"github.com/shoppulse/dashsvc/internal/dedup"
	"github.com/shoppulse/dashsvc/internal/handlers"
	"github.com/shoppulse/dashsvc/internal/hub"
	"github.com/shoppulse/dashsvc/internal/messaging"
	"github.com/shoppulse/dashsvc/internal/messaging/kafkapub"
	"github.com/shoppulse/dashsvc/internal/messaging/noop"
	"github.com/shoppulse/dashsvc/internal/router"
	"github.com/shoppulse/dashsvc/internal/storage/postgres"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := postgres.New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	log.Info("postgres connected")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	tracker := dedup.New(rdb, cfg.AttemptTTL)
	log.Info("redis connected")

	h := hub.New(log, cfg.SubscriberQueue)
	defer h.Close()

	r := router.New(log)
	if err := handlers.New(store, tracker, log).Register(r); err != nil {
		return err
	}

	reader := kafkapub.NewReader(cfg.KafkaBrokers, cfg.KafkaGroup, cfg.KafkaTopic)
	defer reader.Close()
	// Without a dead-letter topic, exhausted messages are dropped after the
	// final log line instead of being parked.
	var dlq messaging.Publisher = noop.Publisher{}
	if cfg.DeadLetterTopic != "" {
		dlq = kafkapub.New(cfg.KafkaBrokers, cfg.DeadLetterTopic)
	}
	defer dlq.Close()
	pub := kafkapub.New(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer pub.Close()

	cons := consumer.New(consumer.Config{
		Lanes:             cfg.ConsumerLanes,
		Prefetch:          cfg.ConsumerPrefetch,
		MaxAttempts:       cfg.MaxAttempts,
		HandlerTimeout:    cfg.HandlerTimeout,
		RetryDelay:        cfg.RetryDelay,
		BroadcastProducts: cfg.BroadcastProducts,
	}, reader, r, h, tracker, dlq, log)

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- cons.Run(ctx)
	}()

	apiServer := api.New(store, pub, h, log)
	apiServer.SetMockRate(cfg.MockRateLimit, cfg.MockRateWindow)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiServer.Routes(),
	}
	httpDone := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		httpDone <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-httpDone:
		stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if err := <-consumerDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bidconnect/notification-service/internal/api"
	"github.com/bidconnect/notification-service/internal/config"
	"github.com/bidconnect/notification-service/internal/consumer"
	"github.com/bidconnect/notification-service/internal/db"
	"github.com/bidconnect/notification-service/internal/idempotency"
	"github.com/bidconnect/notification-service/internal/logger"
	"github.com/bidconnect/notification-service/internal/metrics"
	"github.com/bidconnect/notification-service/internal/provider"
	"github.com/bidconnect/notification-service/internal/ratelimiter"
	"github.com/bidconnect/notification-service/internal/repository"
	"github.com/bidconnect/notification-service/internal/service"
	"github.com/bidconnect/notification-service/internal/template"
	"github.com/bidconnect/notification-service/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the event consumer",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "HTTP port (overrides HTTP_PORT)")
	serveCmd.Flags().Bool("no-consumer", false, "serve the API only, without consuming events")
	serveCmd.Flags().Bool("skip-migrate", false, "do not apply migrations on startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.HTTPPort, _ = cmd.Flags().GetString("port")
	}
	if noConsumer, _ := cmd.Flags().GetBool("no-consumer"); noConsumer {
		cfg.ConsumerEnabled = false
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- database ----
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if skip, _ := cmd.Flags().GetBool("skip-migrate"); !skip {
		if err := db.Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
			return err
		}
		log.Info("database migrations applied")
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	repo := repository.NewPgNotificationRepository(pool)
	renderer, err := template.NewHTMLRenderer()
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	mailer, err := provider.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}
	log.Info("mail provider selected", zap.String("provider", mailer.Name()))

	guard, closeGuard := newGuard(ctx, cfg, log)
	defer closeGuard()

	onSent, onFailed := m.ProcessorHooks()
	proc := service.NewProcessor(
		repo, renderer, mailer,
		ratelimiter.New(cfg.MailRateLimit),
		guard,
		cfg.TransmitTimeout,
		log,
		service.MetricHooks{OnSent: onSent, OnFailed: onFailed},
	)
	svc := service.NewNotificationService(repo, proc, log)

	// ---- event consumer ----
	consumerDone := make(chan struct{})
	var workers *worker.Pool
	if cfg.ConsumerEnabled {
		reader := consumer.NewKafkaReader(cfg)
		c, err := consumer.New(reader, proc, log.Named("consumer"), m.ObserveEvent)
		if err != nil {
			_ = reader.Close()
			return err
		}
		defer func() {
			if err := c.Close(); err != nil {
				log.Warn("kafka reader close error", zap.Error(err))
			}
		}()

		workers = worker.NewPool(cfg.ConsumerConcurrency, cfg.ConsumerQueueSize, c.Handle, reader, log.Named("worker"))
		workers.Start(ctx)

		go func() {
			defer close(consumerDone)
			_ = c.Run(ctx, workers)
		}()
		log.Info("consumer started",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
			zap.String("group_id", cfg.KafkaGroupID),
			zap.Int("concurrency", workers.Size()),
			zap.Int("queue_size", cfg.ConsumerQueueSize),
		)
	} else {
		close(consumerDone)
		log.Info("consumer disabled")
	}

	// ---- HTTP server ----
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(svc, pool, reg, log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		log.Error("server error", zap.Error(err))
		stop()
	}

	// ---- graceful shutdown ----
	// 1. Stop accepting new HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Wait for the fetch loop to exit, then let workers finish the
	// message in hand.
	<-consumerDone
	if workers != nil {
		workers.Stop()
	}

	log.Info("server stopped cleanly")
	return nil
}

// newGuard returns a Redis-backed guard when REDIS_ADDR is set and a no-op
// guard otherwise. An unreachable Redis is logged, not fatal.
func newGuard(ctx context.Context, cfg *config.Config, log *zap.Logger) (idempotency.Guard, func()) {
	if cfg.RedisAddr == "" {
		log.Info("idempotency guard disabled")
		return idempotency.NopGuard{}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, guard will fail open until it recovers", zap.Error(err))
	}
	log.Info("idempotency guard enabled",
		zap.String("addr", cfg.RedisAddr),
		zap.Duration("ttl", cfg.IdempotencyTTL),
		zap.Duration("pending_ttl", cfg.IdempotencyPendingTTL),
	)

	return idempotency.NewRedisGuard(client, cfg.IdempotencyTTL, cfg.IdempotencyPendingTTL), func() {
		if err := client.Close(); err != nil {
			log.Warn("redis close error", zap.Error(err))
		}
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/appointment-booking/internal/appointment"
	"github.com/hackgods/appointment-booking/internal/auditrelay"
	"github.com/hackgods/appointment-booking/internal/config"
	"github.com/hackgods/appointment-booking/internal/db"
	"github.com/hackgods/appointment-booking/internal/logging"
	"github.com/hackgods/appointment-booking/internal/observability"
	redisclient "github.com/hackgods/appointment-booking/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("prod", "error", "audit-relay")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "audit-relay")
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.RelayInterval).
		Strs("brokers", cfg.KafkaBrokers).
		Str("topic", cfg.KafkaAuditTopic).
		Msg("audit-relay starting up")

	if cfg.StoreBackend != config.BackendPostgres {
		logger.Fatal().Str("store_backend", cfg.StoreBackend).Msg("audit relay needs the postgres backend")
	}
	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal().Msg("KAFKA_BROKERS is required")
	}
	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("REDIS_ADDR or REDIS_URL is required")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(rootCtx, observability.TracingConfig{
		Enabled:      cfg.OtelEnabled,
		ServiceName:  "audit-relay",
		OTLPEndpoint: cfg.OtelEndpoint,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup error")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, "audit-relay")
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	writer := auditrelay.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing kafka writer")
		}
	}()

	relay := auditrelay.New(
		appointment.NewPgRepository(pgPool).WithAuditSettle(cfg.RelaySettle),
		writer,
		redisclient.NewRedisLocker(rdb, "lock:", cfg.LockTTL),
		redisclient.NewCursor(rdb, "audit:relay:cursor:"+cfg.KafkaAuditTopic),
		logger,
		observability.NewRelayMetrics(nil),
		auditrelay.Config{Interval: cfg.RelayInterval, BatchSize: cfg.RelayBatchSize},
	)

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	relay.Run(rootCtx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info().Msg("audit-relay stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hackgods/appointment-booking/internal/api"
	"github.com/hackgods/appointment-booking/internal/appointment"
	"github.com/hackgods/appointment-booking/internal/config"
	"github.com/hackgods/appointment-booking/internal/db"
	"github.com/hackgods/appointment-booking/internal/logging"
	"github.com/hackgods/appointment-booking/internal/observability"
	redisclient "github.com/hackgods/appointment-booking/internal/redis"
	"github.com/hackgods/appointment-booking/internal/seed"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("prod", "error", "api-server")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env, cfg.LogLevel, "api-server")
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store_backend", cfg.StoreBackend).
		Str("audit_policy", cfg.AuditPolicy).
		Str("clinic_timezone", cfg.ClinicTimezone.String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(rootCtx, observability.TracingConfig{
		Enabled:      cfg.OtelEnabled,
		ServiceName:  "appointment-api",
		OTLPEndpoint: cfg.OtelEndpoint,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup error")
	}

	routerCfg := api.RouterConfig{
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		Env:            cfg.Env,
		Version:        version,
	}

	var store appointment.Store
	switch cfg.StoreBackend {
	case config.BackendMemory:
		mem := appointment.NewMemoryStore()
		slots, err := seed.Memory(rootCtx, mem, seed.Doctors, seed.Calendar(time.Now().In(cfg.ClinicTimezone), 30))
		if err != nil {
			logger.Fatal().Err(err).Msg("seed memory store")
		}
		store = mem
		logger.Warn().Int("slots", slots).Msg("using in-memory store, data is lost on restart")
	default:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, "api-server")
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")

		store = appointment.NewPgRepository(pgPool)
		routerCfg.PostgresCheck = pgPool.Ping
	}

	if cfg.RedisAddr != "" {
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
		routerCfg.RedisCheck = redisclient.PingCheck(rdb)
	}

	policy, err := appointment.ParseAuditPolicy(cfg.AuditPolicy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid audit policy")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	routerCfg.Gatherer = reg

	routerCfg.Service = appointment.NewService(store, appointment.Options{
		AuditPolicy: policy,
		Location:    cfg.ClinicTimezone,
		Logger:      logger.With().Str("module", "booking").Logger(),
		Metrics:     observability.NewBookingMetrics(reg),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown error")
	}

	logger.Info().Msg("api-server stopped")
}

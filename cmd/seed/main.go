package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/appointment-booking/internal/appointment"
	"github.com/hackgods/appointment-booking/internal/config"
	"github.com/hackgods/appointment-booking/internal/db"
	"github.com/hackgods/appointment-booking/internal/logging"
	"github.com/hackgods/appointment-booking/internal/seed"
)

func main() {
	days := flag.Int("days", 30, "number of calendar days to create slots for")
	extra := flag.Int("extra-doctors", 0, "additional generated doctors beyond the fixed roster")
	flag.Parse()

	logger := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"), "seed")
	logger.Info().Int("days", *days).Int("extra_doctors", *extra).Msg("seed starting")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	if cfg.StoreBackend != config.BackendPostgres {
		logger.Fatal().Str("store_backend", cfg.StoreBackend).Msg("seed only targets the postgres backend")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, "seed")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	doctors := append([]appointment.Doctor(nil), seed.Doctors...)
	if *extra > 0 {
		doctors = append(doctors, seed.ExtraDoctors(gofakeit.New(uint64(time.Now().UnixNano())), *extra)...)
	}
	dates := seed.Calendar(time.Now().In(cfg.ClinicTimezone), *days)

	inserted, err := seed.Postgres(ctx, pool, doctors, dates)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}

	logger.Info().
		Int("doctors", len(doctors)).
		Int("dates", len(dates)).
		Int64("slots_inserted", inserted).
		Msg("seed complete")
}

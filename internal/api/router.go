package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/appointment-booking/internal/appointment"
)

type RouterConfig struct {
	Service        *appointment.Service
	Logger         zerolog.Logger
	PostgresCheck  Check
	RedisCheck     Check
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PostgresCheck, cfg.RedisCheck, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	h := &handlers{svc: cfg.Service, log: cfg.Logger}
	r.Group(func(r chi.Router) {
		r.Use(TimeoutMiddleware(cfg.RequestTimeout))

		r.Post("/book-appointment", h.bookAppointment)
		r.Post("/cancel-appointment", h.cancelAppointment)
		r.Get("/appointments", h.listAppointments)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Get("/available-slots", h.availableSlots)
		r.Get("/doctors", h.listDoctors)
		r.Post("/patients", h.createPatient)
		r.Get("/audit-logs", h.auditLogs)
	})

	return otelhttp.NewHandler(r, "appointment-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

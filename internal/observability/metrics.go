package observability

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics counts booking engine outcomes. A nil *BookingMetrics is a
// valid no-op.
type BookingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	bookingLatency     *prometheus.HistogramVec
	cancellationsTotal *prometheus.CounterVec
	rollbacksTotal     *prometheus.CounterVec
	auditFailuresTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "booking_duration_seconds",
			Help:      "Time spent handling a booking attempt",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome",
		}, []string{"outcome"}),
		rollbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "rollbacks_total",
			Help:      "Booking compensations by result",
		}, []string{"result"}),
		auditFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "audit",
			Name:      "write_failures_total",
			Help:      "Audit entries that could not be written",
		}, []string{"action"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingLatency, m.cancellationsTotal, m.rollbacksTotal, m.auditFailuresTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *BookingMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveRollback(result string) {
	if m == nil {
		return
	}
	m.rollbacksTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveAuditFailure(action string) {
	if m == nil {
		return
	}
	m.auditFailuresTotal.WithLabelValues(action).Inc()
}

// RelayMetrics counts audit relay progress.
type RelayMetrics struct {
	publishedTotal prometheus.Counter
	errorsTotal    *prometheus.CounterVec
	lastSeq        prometheus.Gauge
}

func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		publishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "audit_relay",
			Name:      "published_total",
			Help:      "Audit entries published to Kafka",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "audit_relay",
			Name:      "errors_total",
			Help:      "Relay batch failures by stage",
		}, []string{"stage"}),
		lastSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "audit_relay",
			Name:      "cursor_seq",
			Help:      "Last audit sequence number published",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.publishedTotal, m.errorsTotal, m.lastSeq)
	return m
}

func (m *RelayMetrics) ObservePublished(n int, cursor int64) {
	if m == nil {
		return
	}
	m.publishedTotal.Add(float64(n))
	m.lastSeq.Set(float64(cursor))
}

func (m *RelayMetrics) ObserveError(stage string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(stage).Inc()
}

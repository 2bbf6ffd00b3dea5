package auditrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/appointment-booking/internal/appointment"
	"github.com/hackgods/appointment-booking/internal/observability"
	redisclient "github.com/hackgods/appointment-booking/internal/redis"
)

const lockName = "audit-relay"

var tracer = otel.Tracer("github.com/hackgods/appointment-booking/internal/auditrelay")

// Source pages through the audit trail in sequence order.
type Source interface {
	ListAuditEntriesAfter(ctx context.Context, afterSeq int64, limit int) ([]appointment.AuditLogEntry, error)
}

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Cursor interface {
	Get(ctx context.Context) (int64, error)
	Advance(ctx context.Context, pos int64) error
}

type Config struct {
	Interval  time.Duration
	BatchSize int
}

// Relay copies audit entries to Kafka. Delivery is at least once: the cursor
// only moves after Kafka acknowledged the whole batch.
type Relay struct {
	source  Source
	writer  Writer
	locker  redisclient.Locker
	cursor  Cursor
	log     zerolog.Logger
	metrics *observability.RelayMetrics

	interval  time.Duration
	batchSize int
}

func New(source Source, writer Writer, locker redisclient.Locker, cursor Cursor, log zerolog.Logger, metrics *observability.RelayMetrics, cfg Config) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		source:    source,
		writer:    writer,
		locker:    locker,
		cursor:    cursor,
		log:       log,
		metrics:   metrics,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

func (r *Relay) Run(ctx context.Context) {
	r.log.Info().Dur("interval", r.interval).Int("batch_size", r.batchSize).Msg("audit relay started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("audit relay stopping")
			return
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.log.Error().Err(err).Msg("audit relay batch failed")
				continue
			}
			if n > 0 {
				r.log.Info().Int("published", n).Msg("audit relay batch published")
			}
		}
	}
}

// RunOnce publishes at most one batch. Losing the lock to another instance is
// not an error and publishes nothing.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	var published int
	err := r.locker.WithLock(ctx, lockName, func(ctx context.Context) error {
		n, err := r.publishBatch(ctx)
		published = n
		return err
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		r.log.Debug().Msg("audit relay lock held elsewhere")
		return 0, nil
	}
	return published, err
}

func (r *Relay) publishBatch(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "auditrelay.publishBatch")
	defer span.End()

	after, err := r.cursor.Get(ctx)
	if err != nil {
		r.metrics.ObserveError("cursor")
		return 0, err
	}

	entries, err := r.source.ListAuditEntriesAfter(ctx, after, r.batchSize)
	if err != nil {
		r.metrics.ObserveError("fetch")
		return 0, fmt.Errorf("fetch audit entries after %d: %w", after, err)
	}
	span.SetAttributes(attribute.Int64("cursor", after), attribute.Int("entries", len(entries)))
	if len(entries) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(entries))
	for _, e := range entries {
		msg, err := toMessage(ctx, e)
		if err != nil {
			r.metrics.ObserveError("encode")
			return 0, err
		}
		msgs = append(msgs, msg)
	}

	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		r.metrics.ObserveError("publish")
		return 0, fmt.Errorf("publish audit entries: %w", err)
	}

	last := entries[len(entries)-1].Seq
	if err := r.cursor.Advance(ctx, last); err != nil {
		r.metrics.ObserveError("cursor")
		return 0, err
	}

	r.metrics.ObservePublished(len(entries), last)
	return len(entries), nil
}

// toMessage keys by appointment so one appointment's history stays ordered
// within a partition.
func toMessage(ctx context.Context, e appointment.AuditLogEntry) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode audit entry %s: %w", e.ID, err)
	}

	key := e.ID.String()
	if e.AppointmentID != nil {
		key = e.AppointmentID.String()
	}

	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(e.ID.String())},
		{Key: "action", Value: []byte(e.Action)},
		{Key: "status", Value: []byte(e.Status)},
	}
	return kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: injectTraceHeaders(ctx, headers),
	}, nil
}

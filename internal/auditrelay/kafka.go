package auditrelay

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter returns a writer for the audit topic. WriteMessages blocks
// until every broker acknowledgement required by RequireAll arrived.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

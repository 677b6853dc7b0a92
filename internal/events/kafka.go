package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/techstore/internal/domain/order"
)

// MessageWriter is the subset of *kafka.Writer used by Kafka.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ order.Publisher = (*Kafka)(nil)

// Kafka publishes order events to a Kafka topic keyed by order ID, so all
// events of one order land on the same partition.
type Kafka struct {
	w   MessageWriter
	now func() time.Time
}

// NewKafkaWriter returns a writer for topic on brokers that waits for all
// in-sync replicas.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// NewKafka returns a publisher writing through w.
func NewKafka(w MessageWriter) *Kafka {
	return &Kafka{w: w, now: time.Now}
}

func (k *Kafka) OrderPlaced(ctx context.Context, o *order.Order) error {
	msg := kafka.Message{
		Key:   []byte(o.ID),
		Value: EncodeOrderPlaced(o, k.now()),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeOrderPlaced)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish %s for order %s", TypeOrderPlaced, o.ID)
	}
	return nil
}

// Close flushes pending messages.
func (k *Kafka) Close() error {
	return k.w.Close()
}

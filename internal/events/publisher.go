// README: Domain event publishing (Kafka) for ride lifecycle and driver location changes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TypeRideCreated       = "ride.created"
	TypeRideAssigned      = "ride.assigned"
	TypeRideStatusChanged = "ride.status_changed"
	TypeLocationUpdated   = "driver.location_updated"
	TypeAvailability      = "driver.availability_changed"
	TypePaymentRecorded   = "payment.recorded"
	TypeProfileUpdated    = "user.profile_updated"
)

type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON encoded events keyed by Event.Key so that all
// events of one ride or driver land on the same partition.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

func NewKafkaPublisher(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: 2 * time.Second}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(e.Key),
		Value:   b,
		Headers: []kafka.Header{{Key: "type", Value: []byte(e.Type)}},
	})
}

func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// PublishBestEffort publishes e and logs a failure instead of returning it.
func PublishBestEffort(ctx context.Context, p Publisher, log *zap.Logger, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Warn("publish event failed", zap.String("type", e.Type), zap.String("key", e.Key), zap.Error(err))
	}
}

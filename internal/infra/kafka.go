// README: Kafka writer initialization for domain events.
package infra

import "github.com/segmentio/kafka-go"

// NewKafkaWriter returns nil when no brokers are configured.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if len(brokers) == 0 {
		return nil
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

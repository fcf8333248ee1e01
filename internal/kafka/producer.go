package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-checkin/internal/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON messages. The topic is chosen per message.
type Producer struct {
	Writer messageWriter
	Logger *logger.Logger
}

// NewProducer returns an asynchronous producer; delivery failures are logged
// from the writer's completion callback.
func NewProducer(brokers []string, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.NewNop()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("KAFKA", fmt.Sprintf("Failed to deliver %d messages: %v", len(messages), err))
			}
		},
	}
	return &Producer{Writer: writer, Logger: log}
}

// Publish encodes value as JSON and writes it to topic under key.
func (p *Producer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	msgBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", topic, err)
	}

	p.Logger.Debug("KAFKA", fmt.Sprintf("Publishing to %s: %s", topic, msgBytes))

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// TicketsChangedHandler is called for every ticket change notification.
type TicketsChangedHandler func(ctx context.Context, change models.TicketsChangedEvent) error

type Consumer struct {
	reader messageReader
	topic  string
	logger *logger.Logger
}

// NewConsumer creates a Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	if log == nil {
		log = logger.NewNop()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  500 * time.Millisecond,
	})
	return &Consumer{reader: reader, topic: topic, logger: log}
}

// Run consumes until ctx is cancelled or the reader is closed. Malformed
// messages and handler failures are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handler TicketsChangedHandler) error {
	c.logger.LogKafka("CONSUME", c.topic, "consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading from %s: %v", c.topic, err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		var change models.TicketsChangedEvent
		if err := json.Unmarshal(msg.Value, &change); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("Failed to decode ticket change at offset %d: %v", msg.Offset, err))
			continue
		}
		if change.EventID <= 0 || len(change.Codes) == 0 {
			continue
		}

		if err := handler(ctx, change); err != nil {
			c.logger.Error("KAFKA", fmt.Sprintf("Failed to apply ticket change for event %d: %v", change.EventID, err))
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

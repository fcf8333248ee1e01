package kafka

import (
	"context"
	"fmt"
	"strconv"

	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

// Topics names the topics the check-in service writes and reads.
type Topics struct {
	ScanDecided    string
	StatsUpdated   string
	TicketsChanged string
}

// ScanPublisher streams decisions and stats to Kafka for downstream
// consumers. Failures are logged and never reach the scan path.
type ScanPublisher struct {
	Producer *Producer
	Topics   Topics
	Logger   *logger.Logger
}

func NewScanPublisher(producer *Producer, topics Topics, log *logger.Logger) *ScanPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &ScanPublisher{Producer: producer, Topics: topics, Logger: log}
}

func (p *ScanPublisher) ScanDecided(ctx context.Context, event models.ScanDecisionEvent) {
	p.publish(ctx, p.Topics.ScanDecided, event.EventID, event)
}

func (p *ScanPublisher) StatsUpdated(ctx context.Context, event models.StatsUpdateEvent) {
	p.publish(ctx, p.Topics.StatsUpdated, event.EventID, event)
}

func (p *ScanPublisher) publish(ctx context.Context, topic string, eventID int64, value interface{}) {
	if topic == "" {
		return
	}
	// Keyed by event so one event's messages stay ordered on one partition.
	if err := p.Producer.Publish(ctx, topic, strconv.FormatInt(eventID, 10), value); err != nil {
		p.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish to %s for event %d: %v", topic, eventID, err))
	}
}

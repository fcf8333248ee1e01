package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"ms-checkin/internal/checkin"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

const (
	msgScanDecided  = "scan_decided"
	msgStatsUpdated = "stats_updated"
)

type relayMsg struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Relay fans broadcasts out across instances. Publishing side implements
// checkin.Notifier; Run delivers every message, including this instance's
// own, to the local notifier.
type Relay struct {
	Client *redis.Client
	Local  checkin.Notifier
	Logger *logger.Logger
}

func NewRelay(client *redis.Client, local checkin.Notifier, log *logger.Logger) *Relay {
	if log == nil {
		log = logger.NewNop()
	}
	return &Relay{Client: client, Local: local, Logger: log}
}

func (r *Relay) ScanDecided(ctx context.Context, event models.ScanDecisionEvent) {
	r.publish(ctx, event.EventID, msgScanDecided, event)
}

func (r *Relay) StatsUpdated(ctx context.Context, event models.StatsUpdateEvent) {
	r.publish(ctx, event.EventID, msgStatsUpdated, event)
}

func (r *Relay) publish(ctx context.Context, eventID int64, kind string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		r.Logger.Error("REDIS", fmt.Sprintf("Failed to encode %s for event %d: %v", kind, eventID, err))
		return
	}
	msg, _ := json.Marshal(relayMsg{Type: kind, Payload: body})
	if err := r.Client.Publish(ctx, ChannelEvents(eventID), msg).Err(); err != nil {
		r.Logger.Warn("REDIS", fmt.Sprintf("Failed to publish %s for event %d: %v", kind, eventID, err))
	}
}

// Run subscribes to every event channel until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.Client.PSubscribe(ctx, channelEventsPattern())
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channelEventsPattern(), err)
	}
	r.Logger.LogRedis("SUBSCRIBE", channelEventsPattern(), "relay started")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.dispatch(ctx, m.Payload)
		}
	}
}

func (r *Relay) dispatch(ctx context.Context, raw string) {
	var msg relayMsg
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.Logger.Warn("REDIS", fmt.Sprintf("Dropping malformed relay message: %v", err))
		return
	}

	switch msg.Type {
	case msgScanDecided:
		var event models.ScanDecisionEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			r.Logger.Warn("REDIS", fmt.Sprintf("Dropping malformed %s: %v", msg.Type, err))
			return
		}
		r.Local.ScanDecided(ctx, event)
	case msgStatsUpdated:
		var event models.StatsUpdateEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			r.Logger.Warn("REDIS", fmt.Sprintf("Dropping malformed %s: %v", msg.Type, err))
			return
		}
		r.Local.StatsUpdated(ctx, event)
	default:
		r.Logger.Debug("REDIS", "Ignoring relay message of type "+msg.Type)
	}
}

package checkin

import (
	"context"

	"ms-checkin/internal/models"
)

// Notifier receives broadcast payloads for observers. Implementations handle
// their own delivery failures; a slow or broken observer never fails a scan.
type Notifier interface {
	ScanDecided(ctx context.Context, event models.ScanDecisionEvent)
	StatsUpdated(ctx context.Context, event models.StatsUpdateEvent)
}

// Notifiers fans every payload out to each notifier in order.
type Notifiers []Notifier

func (n Notifiers) ScanDecided(ctx context.Context, event models.ScanDecisionEvent) {
	for _, notifier := range n {
		notifier.ScanDecided(ctx, event)
	}
}

func (n Notifiers) StatsUpdated(ctx context.Context, event models.StatsUpdateEvent) {
	for _, notifier := range n {
		notifier.StatsUpdated(ctx, event)
	}
}

package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ms-checkin/internal/checkin"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

const DefaultRefreshDebounce = 250 * time.Millisecond

// StatsSource is satisfied by Service.
type StatsSource interface {
	GetStats(ctx context.Context, eventID int64) (*models.EventStats, error)
}

// Refresher recomputes stats after decisions and announces them. Requests
// for the same event arriving within the debounce interval are coalesced
// into one recomputation.
type Refresher struct {
	stats    StatsSource
	notifier checkin.Notifier
	debounce time.Duration
	logger   *logger.Logger

	mu      sync.Mutex
	pending map[int64]struct{}
	wake    chan struct{}
}

func NewRefresher(stats StatsSource, notifier checkin.Notifier, debounce time.Duration, log *logger.Logger) *Refresher {
	if debounce <= 0 {
		debounce = DefaultRefreshDebounce
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Refresher{
		stats:    stats,
		notifier: notifier,
		debounce: debounce,
		logger:   log,
		pending:  make(map[int64]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Request schedules a recomputation for eventID. It never blocks.
func (r *Refresher) Request(eventID int64) {
	r.mu.Lock()
	r.pending[eventID] = struct{}{}
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run processes requests until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.LogProcess("STATS", "Refresher started")
	defer r.logger.LogProcess("STATS", "Refresher stopped")

	timer := time.NewTimer(r.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.wake:
		}

		timer.Reset(r.debounce)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		for _, eventID := range r.drain() {
			r.refresh(ctx, eventID)
		}
	}
}

func (r *Refresher) drain() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]int64, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	r.pending = make(map[int64]struct{})
	return ids
}

func (r *Refresher) refresh(ctx context.Context, eventID int64) {
	stats, err := r.stats.GetStats(ctx, eventID)
	if err != nil {
		r.logger.Error("STATS", fmt.Sprintf("Failed to recompute stats for event %d: %v", eventID, err))
		return
	}
	if r.notifier != nil {
		r.notifier.StatsUpdated(ctx, models.NewStatsUpdateEvent(*stats))
	}
}

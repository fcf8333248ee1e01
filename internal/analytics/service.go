package analytics

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"ms-checkin/internal/checkin"
	"ms-checkin/internal/models"
)

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

// TicketCounter reports issued and used ticket counts for an event.
type TicketCounter interface {
	CountTickets(ctx context.Context, eventID int64) (total, used int, err error)
}

// Service computes check-in statistics and the recent scan feed.
type Service struct {
	tickets TicketCounter
	ledger  checkin.ScanLedger
	recent  *RecentBuffer
	sf      singleflight.Group
	now     func() time.Time
}

// NewService creates the aggregator. recent may be nil.
func NewService(tickets TicketCounter, ledger checkin.ScanLedger, recent *RecentBuffer) *Service {
	return &Service{tickets: tickets, ledger: ledger, recent: recent, now: time.Now}
}

// GetStats returns the live summary for an event. Concurrent calls for the
// same event share one computation.
func (s *Service) GetStats(ctx context.Context, eventID int64) (*models.EventStats, error) {
	// The computation is shared with other callers, so one caller going away
	// must not fail it for the rest.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.sf.Do(strconv.FormatInt(eventID, 10), func() (interface{}, error) {
		return s.computeStats(shared, eventID)
	})
	if err != nil {
		return nil, err
	}
	stats := *v.(*models.EventStats)
	stats.ByOutcome = copyCounts(stats.ByOutcome)
	return &stats, nil
}

func (s *Service) computeStats(ctx context.Context, eventID int64) (*models.EventStats, error) {
	total, used, err := s.tickets.CountTickets(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}
	counts, err := s.ledger.CountByOutcome(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to count scans: %w", err)
	}

	stats := &models.EventStats{
		EventID:    eventID,
		Total:      total,
		Used:       used,
		ByOutcome:  make(map[models.Outcome]int, len(models.Outcomes)),
		ComputedAt: s.now(),
	}
	for _, outcome := range models.Outcomes {
		stats.ByOutcome[outcome] = 0
	}
	for outcome, n := range counts {
		stats.ByOutcome[outcome] = n
		stats.TotalScans += n
	}
	stats.ScannedValid = stats.ByOutcome[models.OutcomeValid]
	stats.ScannedOther = stats.TotalScans - stats.ScannedValid
	if total > 0 {
		stats.SuccessRate = float64(stats.ScannedValid) / float64(total) * 100
	}
	return stats, nil
}

// GetRecentScans returns up to limit records for the event, newest first.
// Buffered copies win over ledger copies of the same record.
func (s *Service) GetRecentScans(ctx context.Context, eventID int64, limit int) ([]models.ScanRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	var buffered []models.ScanRecord
	if s.recent != nil {
		buffered = s.recent.Recent(eventID, limit, s.now())
	}
	stored, err := s.ledger.ListRecent(ctx, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent scans: %w", err)
	}

	seen := make(map[string]struct{}, len(buffered)+len(stored))
	merged := make([]models.ScanRecord, 0, len(buffered)+len(stored))
	for _, list := range [][]models.ScanRecord{buffered, stored} {
		for _, r := range list {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			merged = append(merged, r)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].ScannedAt.After(merged[j].ScannedAt)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func copyCounts(in map[models.Outcome]int) map[models.Outcome]int {
	out := make(map[models.Outcome]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

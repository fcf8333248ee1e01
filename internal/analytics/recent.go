package analytics

import (
	"sync"
	"time"

	"ms-checkin/internal/models"
)

const (
	DefaultRecentBufferSize   = 500
	DefaultRecentBufferWindow = 30 * time.Minute
)

// RecentBuffer keeps the newest scan records per event in memory so the
// recent feed does not wait on the ledger. Records older than the window
// are ignored and pruned.
type RecentBuffer struct {
	mu      sync.Mutex
	size    int
	window  time.Duration
	byEvent map[int64][]models.ScanRecord
}

func NewRecentBuffer(size int, window time.Duration) *RecentBuffer {
	if size <= 0 {
		size = DefaultRecentBufferSize
	}
	if window <= 0 {
		window = DefaultRecentBufferWindow
	}
	return &RecentBuffer{size: size, window: window, byEvent: make(map[int64][]models.ScanRecord)}
}

// Add stores a record. It satisfies checkin.RecordSink.
func (b *RecentBuffer) Add(record models.ScanRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	records := append(b.byEvent[record.EventID], record)
	if over := len(records) - b.size; over > 0 {
		records = append(records[:0:0], records[over:]...)
	}
	b.byEvent[record.EventID] = records
}

// Recent returns up to limit records newer than the window, newest first.
func (b *RecentBuffer) Recent(eventID int64, limit int, now time.Time) []models.ScanRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-b.window)
	records := b.byEvent[eventID]

	keep := records[:0]
	for _, r := range records {
		if !r.ScannedAt.Before(cutoff) {
			keep = append(keep, r)
		}
	}
	if len(keep) == 0 {
		delete(b.byEvent, eventID)
		return nil
	}
	b.byEvent[eventID] = keep

	out := make([]models.ScanRecord, 0, limit)
	for i := len(keep) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, keep[i])
	}
	return out
}

func (b *RecentBuffer) Len(eventID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byEvent[eventID])
}

package checkin

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ms-checkin/internal/models"
)

// memTicketStore is a thread-safe TicketStore with compare-and-set semantics
// and call counters.
type memTicketStore struct {
	mu      sync.Mutex
	tickets map[string]models.Ticket

	resolveCalls int32
	markCalls    int32

	resolveErr error
	markErr    error
}

func newMemTicketStore(tickets ...models.Ticket) *memTicketStore {
	s := &memTicketStore{tickets: make(map[string]models.Ticket)}
	for _, t := range tickets {
		s.tickets[t.TicketCode()] = t
	}
	return s
}

func (s *memTicketStore) Resolve(_ context.Context, code string) (models.Ticket, error) {
	atomic.AddInt32(&s.resolveCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	t, ok := s.tickets[code]
	if !ok {
		return nil, nil
	}
	return copyTicket(t), nil
}

func (s *memTicketStore) TryMarkUsed(_ context.Context, code, guardID string, now time.Time) (bool, error) {
	atomic.AddInt32(&s.markCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return false, s.markErr
	}
	switch t := s.tickets[code].(type) {
	case *models.NamedTicket:
		if t.Used {
			return false, nil
		}
		t.Used, t.UsedAt, t.UsedByGuard = true, now, guardID
		return true, nil
	case *models.AnonymousTicket:
		if t.Used {
			return false, nil
		}
		t.Used, t.UsedAt, t.UsedByGuard = true, now, guardID
		return true, nil
	}
	return false, nil
}

func (s *memTicketStore) ticket(code string) models.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyTicket(s.tickets[code])
}

func (s *memTicketStore) calls() (resolve, mark int32) {
	return atomic.LoadInt32(&s.resolveCalls), atomic.LoadInt32(&s.markCalls)
}

func copyTicket(t models.Ticket) models.Ticket {
	switch v := t.(type) {
	case *models.NamedTicket:
		cp := *v
		return &cp
	case *models.AnonymousTicket:
		cp := *v
		return &cp
	}
	return nil
}

type memLedger struct {
	mu        sync.Mutex
	records   []models.ScanRecord
	appendErr error
}

func (l *memLedger) AppendScanRecord(_ context.Context, record *models.ScanRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	l.records = append(l.records, *record)
	return nil
}

func (l *memLedger) CountByOutcome(_ context.Context, eventID int64) (map[models.Outcome]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[models.Outcome]int)
	for _, r := range l.records {
		if r.EventID == eventID {
			counts[r.Outcome]++
		}
	}
	return counts, nil
}

func (l *memLedger) ListRecent(_ context.Context, eventID int64, limit int) ([]models.ScanRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.ScanRecord
	for _, r := range l.records {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScannedAt.After(out[j].ScannedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) all() []models.ScanRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.ScanRecord(nil), l.records...)
}

func (l *memLedger) countFor(code string, outcome models.Outcome) int {
	n := 0
	for _, r := range l.all() {
		if r.Code == code && r.Outcome == outcome {
			n++
		}
	}
	return n
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

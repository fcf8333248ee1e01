package checkin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkin/internal/models"
)

type recordingNotifier struct {
	mu    sync.Mutex
	scans []models.ScanDecisionEvent
	stats []models.StatsUpdateEvent
}

func (n *recordingNotifier) ScanDecided(_ context.Context, event models.ScanDecisionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scans = append(n.scans, event)
}

func (n *recordingNotifier) StatsUpdated(_ context.Context, event models.StatsUpdateEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stats = append(n.stats, event)
}

type recordingStats struct {
	requested []int64
}

func (s *recordingStats) Request(eventID int64) {
	s.requested = append(s.requested, eventID)
}

func TestServiceScan_NotifiesObservers(t *testing.T) {
	f := newEngineFixture(3*time.Second, namedTicket("ABC123", testEvent, baseTime.Add(time.Hour)))
	notifier := &recordingNotifier{}
	stats := &recordingStats{}
	svc := NewService(f.engine, notifier, stats, nil)

	d, err := svc.Scan(context.Background(), scan("ABC123", "door1"))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeValid, d.Outcome)

	require.Len(t, notifier.scans, 1)
	event := notifier.scans[0]
	assert.Equal(t, testEvent, event.EventID)
	assert.Equal(t, models.OutcomeValid, event.Outcome)
	assert.Equal(t, "Layla Hassan", event.GuestName)
	assert.Equal(t, "door1", event.GuardID)
	assert.Equal(t, []int64{testEvent}, stats.requested)
}

func TestServiceScan_StoreErrorSkipsNotification(t *testing.T) {
	f := newEngineFixture(3*time.Second, namedTicket("ABC123", testEvent, baseTime.Add(time.Hour)))
	f.store.resolveErr = errors.New("db gone")
	notifier := &recordingNotifier{}
	stats := &recordingStats{}
	svc := NewService(f.engine, notifier, stats, nil)

	_, err := svc.Scan(context.Background(), scan("ABC123", "door1"))
	assert.ErrorIs(t, err, ErrStore)
	assert.Empty(t, notifier.scans)
	assert.Empty(t, stats.requested)
}

func TestNotifiersFanOut(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	n := Notifiers{a, b}

	n.ScanDecided(context.Background(), models.ScanDecisionEvent{EventID: 1})
	n.StatsUpdated(context.Background(), models.StatsUpdateEvent{EventID: 1})

	assert.Len(t, a.scans, 1)
	assert.Len(t, b.scans, 1)
	assert.Len(t, a.stats, 1)
	assert.Len(t, b.stats, 1)
}

func TestServiceInvalidateCodes(t *testing.T) {
	f := newEngineFixture(time.Minute, namedTicket("ABC123", testEvent, baseTime.Add(time.Hour)))
	svc := NewService(f.engine, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Scan(ctx, scan("ABC123", "door1"))
	require.NoError(t, err)
	require.Equal(t, 1, f.cache.Len())

	require.NoError(t, svc.InvalidateCodes(ctx, models.TicketsChangedEvent{EventID: testEvent, Codes: []string{"ABC123"}}))
	assert.Zero(t, f.cache.Len())
}

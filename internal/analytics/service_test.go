package analytics_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-checkin/internal/analytics"
	"ms-checkin/internal/checkin"
	"ms-checkin/internal/checkin/db"
	"ms-checkin/internal/models"
)

func setupStore(t *testing.T) *db.DB {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, db.CreateTables(context.Background(), bunDB))
	return db.New(bunDB)
}

func TestGetStats_ValidAndRejectedScans(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	event := &models.Event{Name: "Wedding", Host: "Layla & Omar", Date: time.Now().UTC()}
	require.NoError(t, store.CreateEvent(ctx, event))

	const k = 4
	for i := 0; i < k+1; i++ {
		require.NoError(t, store.CreateAnonymousTicket(ctx, &models.AnonymousTicket{
			Code:        fmt.Sprintf("ANON-%d", i),
			GuestLabel:  fmt.Sprintf("Guest %d", i+1),
			GuestNumber: fmt.Sprintf("G%03d", i+1),
			EventID:     event.ID,
		}))
	}

	coordinator := checkin.NewScanCoordinator(checkin.NewMemoryCache(100), checkin.CoordinatorOptions{}, nil)
	engine := checkin.NewEngine(store, store, coordinator, nil)
	scan := func(code, guard string) models.Outcome {
		d, err := engine.Decide(ctx, models.ScanRequest{Code: code, GuardID: guard, EventID: event.ID})
		require.NoError(t, err)
		return d.Outcome
	}

	for i := 0; i < k; i++ {
		require.Equal(t, models.OutcomeValid, scan(fmt.Sprintf("ANON-%d", i), "door1"))
	}
	rejected := []models.Outcome{
		scan("ANON-0", "door2"),
		scan("ANON-1", "door2"),
		scan("MISSING", "door1"),
	}
	m := len(rejected)

	svc := analytics.NewService(store, store, nil)
	stats, err := svc.GetStats(ctx, event.ID)
	require.NoError(t, err)

	sum := 0
	for _, n := range stats.ByOutcome {
		sum += n
	}
	assert.Equal(t, k+m, sum)
	assert.Equal(t, k+m, stats.TotalScans)
	assert.Equal(t, k, stats.ScannedValid)
	assert.Equal(t, m, stats.ScannedOther)
	assert.Equal(t, k+1, stats.Total)
	assert.Equal(t, k, stats.Used)
	assert.Equal(t, 2, stats.ByOutcome[models.OutcomeAlreadyUsed])
	assert.Equal(t, 1, stats.ByOutcome[models.OutcomeNotFound])
	assert.InDelta(t, 80.0, stats.SuccessRate, 0.001)
	for _, outcome := range models.Outcomes {
		_, ok := stats.ByOutcome[outcome]
		assert.True(t, ok, "by_outcome reports %s", outcome)
	}
}

type fakeCounter struct {
	mu    sync.Mutex
	calls int
	total int
	used  int
	err   error
	gate  chan struct{}
}

func (f *fakeCounter) CountTickets(context.Context, int64) (int, int, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.total, f.used, f.err
}

type fakeLedger struct {
	records []models.ScanRecord
	counts  map[models.Outcome]int
	err     error
}

func (f *fakeLedger) AppendScanRecord(context.Context, *models.ScanRecord) error { return nil }

func (f *fakeLedger) CountByOutcome(context.Context, int64) (map[models.Outcome]int, error) {
	return f.counts, f.err
}

func (f *fakeLedger) ListRecent(_ context.Context, _ int64, limit int) ([]models.ScanRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func TestGetStats_NoTickets(t *testing.T) {
	svc := analytics.NewService(&fakeCounter{}, &fakeLedger{}, nil)

	stats, err := svc.GetStats(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.SuccessRate)
	assert.Len(t, stats.ByOutcome, len(models.Outcomes))
}

func TestGetStats_Errors(t *testing.T) {
	boom := errors.New("db gone")

	_, err := analytics.NewService(&fakeCounter{err: boom}, &fakeLedger{}, nil).GetStats(context.Background(), 1)
	assert.ErrorIs(t, err, boom)

	_, err = analytics.NewService(&fakeCounter{}, &fakeLedger{err: boom}, nil).GetStats(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestGetStats_CoalescesConcurrentReads(t *testing.T) {
	counter := &fakeCounter{total: 10, gate: make(chan struct{})}
	svc := analytics.NewService(counter, &fakeLedger{counts: map[models.Outcome]int{models.OutcomeValid: 3}}, nil)

	var wg sync.WaitGroup
	results := make([]*models.EventStats, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := svc.GetStats(context.Background(), 1)
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(counter.gate)
	wg.Wait()

	counter.mu.Lock()
	calls := counter.calls
	counter.mu.Unlock()
	assert.Less(t, calls, len(results))
	for _, s := range results {
		assert.Equal(t, 3, s.ScannedValid)
	}

	results[0].ByOutcome[models.OutcomeValid] = 99
	assert.Equal(t, 3, results[1].ByOutcome[models.OutcomeValid], "callers get independent maps")
}

type ctxCounter struct{ total int }

func (c *ctxCounter) CountTickets(ctx context.Context, _ int64) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	return c.total, 0, nil
}

func TestGetStats_SharedComputationIgnoresCallerCancel(t *testing.T) {
	svc := analytics.NewService(&ctxCounter{total: 4}, &fakeLedger{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := svc.GetStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
}

func TestGetRecentScans_MergesBufferAndLedger(t *testing.T) {
	now := time.Now()
	stale := models.ScanRecord{ID: "b", EventID: 1, Outcome: models.OutcomeValid, GuestName: "stale copy", ScannedAt: now.Add(-2 * time.Minute)}
	ledger := &fakeLedger{records: []models.ScanRecord{
		{ID: "c", EventID: 1, Outcome: models.OutcomeNotFound, ScannedAt: now.Add(-time.Minute)},
		stale,
		{ID: "a", EventID: 1, Outcome: models.OutcomeExpired, ScannedAt: now.Add(-3 * time.Minute)},
	}}

	buffer := analytics.NewRecentBuffer(10, 30*time.Minute)
	fresh := stale
	fresh.GuestName = "Layla Hassan"
	buffer.Add(fresh)
	buffer.Add(models.ScanRecord{ID: "d", EventID: 1, Outcome: models.OutcomeValid, ScannedAt: now})

	svc := analytics.NewService(&fakeCounter{}, ledger, buffer)
	got, err := svc.GetRecentScans(context.Background(), 1, 10)
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids)
	assert.Equal(t, "Layla Hassan", got[2].GuestName, "buffered copy wins")

	got, err = svc.GetRecentScans(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGetRecentScans_LimitBounds(t *testing.T) {
	var records []models.ScanRecord
	now := time.Now()
	for i := 0; i < 150; i++ {
		records = append(records, models.ScanRecord{ID: fmt.Sprintf("r%d", i), EventID: 1, ScannedAt: now.Add(-time.Duration(i) * time.Second)})
	}
	svc := analytics.NewService(&fakeCounter{}, &fakeLedger{records: records}, nil)

	got, err := svc.GetRecentScans(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, got, analytics.DefaultRecentLimit)

	got, err = svc.GetRecentScans(context.Background(), 1, 1000)
	require.NoError(t, err)
	assert.Len(t, got, analytics.MaxRecentLimit)
}

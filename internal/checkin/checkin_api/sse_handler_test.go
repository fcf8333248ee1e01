package checkin_api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkin/internal/models"
	"ms-checkin/internal/sse"
)

// readEvent returns the next "event:" name and its data line.
func readEvent(t *testing.T, lines <-chan string) (string, string) {
	t.Helper()
	var name string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed")
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: ") && name != "":
				return name, strings.TrimPrefix(line, "data: ")
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestEventStream(t *testing.T) {
	emitter := sse.NewScanEventEmitter()
	h := NewSSEHandler(emitter, nil)
	r := chi.NewRouter()
	r.Route("/api/checkin", h.RegisterRoutes)
	server := httptest.NewServer(r)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/checkin/events/7/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream;charset=UTF-8", resp.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	name, data := readEvent(t, lines)
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, `"event_id":7`)
	require.Eventually(t, func() bool { return emitter.ClientCount(7) == 1 }, time.Second, 5*time.Millisecond)

	emitter.ScanDecided(ctx, models.ScanDecisionEvent{EventID: 7, Outcome: models.OutcomeValid, GuestName: "Layla Hassan"})
	emitter.StatsUpdated(ctx, models.StatsUpdateEvent{EventID: 7, Total: 10, Valid: 1})

	name, data = readEvent(t, lines)
	assert.Equal(t, sse.EventScanDecided, name)
	assert.Contains(t, data, `"guest_name":"Layla Hassan"`)

	name, data = readEvent(t, lines)
	assert.Equal(t, sse.EventStatsUpdated, name)
	assert.Contains(t, data, `"total":10`)

	cancel()
	require.Eventually(t, func() bool { return emitter.ClientCount(7) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventStream_BadEventID(t *testing.T) {
	h := NewSSEHandler(sse.NewScanEventEmitter(), nil)
	r := chi.NewRouter()
	r.Route("/api/checkin", h.RegisterRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/checkin/events/nope/stream", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

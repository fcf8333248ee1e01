package sse

import (
	"context"
	"sync"

	"ms-checkin/internal/models"
)

const (
	EventScanDecided  = "scan_decided"
	EventStatsUpdated = "stats_updated"
)

// Message is one item on an observer's stream.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ScanEventEmitter manages live observers of check-in activity, grouped by
// event.
type ScanEventEmitter struct {
	// key: eventID, value: client channels
	clients     map[int64][]chan Message
	clientMutex sync.RWMutex
	bufferSize  int
}

func NewScanEventEmitter() *ScanEventEmitter {
	return &ScanEventEmitter{
		clients:    make(map[int64][]chan Message),
		bufferSize: 16,
	}
}

// Subscribe adds a client to the event's stream. The channel is closed when
// ctx is done.
func (e *ScanEventEmitter) Subscribe(ctx context.Context, eventID int64) <-chan Message {
	clientChan := make(chan Message, e.bufferSize)

	e.clientMutex.Lock()
	e.clients[eventID] = append(e.clients[eventID], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(eventID, clientChan)
	}()

	return clientChan
}

func (e *ScanEventEmitter) ScanDecided(_ context.Context, event models.ScanDecisionEvent) {
	e.emit(event.EventID, Message{Type: EventScanDecided, Data: event})
}

func (e *ScanEventEmitter) StatsUpdated(_ context.Context, event models.StatsUpdateEvent) {
	e.emit(event.EventID, Message{Type: EventStatsUpdated, Data: event})
}

// emit sends under the read lock so a concurrent removal cannot close a
// channel mid-send.
func (e *ScanEventEmitter) emit(eventID int64, msg Message) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	for _, clientChan := range e.clients[eventID] {
		// Slow clients miss messages rather than stall scanning.
		select {
		case clientChan <- msg:
		default:
		}
	}
}

func (e *ScanEventEmitter) removeClient(eventID int64, clientChan chan Message) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}

// ClientCount returns the number of clients currently watching an event.
func (e *ScanEventEmitter) ClientCount(eventID int64) int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients[eventID])
}

package models

import "time"

// EventStats is the live check-in summary for one event.
type EventStats struct {
	EventID      int64           `json:"event_id"`
	Total        int             `json:"total"`
	Used         int             `json:"used"`
	ScannedValid int             `json:"scanned_valid"`
	ScannedOther int             `json:"scanned_other"`
	TotalScans   int             `json:"total_scans"`
	SuccessRate  float64         `json:"success_rate"`
	ByOutcome    map[Outcome]int `json:"by_outcome"`
	ComputedAt   time.Time       `json:"computed_at"`
}

// ScanDecisionEvent is broadcast to observers after every completed decision.
type ScanDecisionEvent struct {
	EventID   int64     `json:"event_id"`
	Outcome   Outcome   `json:"outcome"`
	GuestName string    `json:"guest_name"`
	Category  string    `json:"category"`
	IsVip     bool      `json:"is_vip"`
	ScannedAt time.Time `json:"scanned_at"`
	GuardID   string    `json:"guard_id"`
}

func NewScanDecisionEvent(d Decision) ScanDecisionEvent {
	ev := ScanDecisionEvent{
		EventID:   d.Metadata.EventID,
		Outcome:   d.Outcome,
		ScannedAt: d.Metadata.ScannedAt,
		GuardID:   d.Metadata.GuardID,
	}
	if d.Guest != nil {
		ev.GuestName = d.Guest.Name
		ev.Category = d.Guest.Category
		ev.IsVip = d.Guest.IsVip
	}
	return ev
}

// StatsUpdateEvent is broadcast after every stats recomputation.
type StatsUpdateEvent struct {
	EventID   int64           `json:"event_id"`
	Total     int             `json:"total"`
	Valid     int             `json:"valid"`
	Other     int             `json:"other"`
	ByOutcome map[Outcome]int `json:"by_outcome"`
}

func NewStatsUpdateEvent(s EventStats) StatsUpdateEvent {
	return StatsUpdateEvent{
		EventID:   s.EventID,
		Total:     s.Total,
		Valid:     s.ScannedValid,
		Other:     s.ScannedOther,
		ByOutcome: s.ByOutcome,
	}
}

// TicketsChangedEvent is consumed from the issuance subsystem when codes are
// reissued or revoked.
type TicketsChangedEvent struct {
	EventID int64    `json:"event_id"`
	Codes   []string `json:"codes"`
}

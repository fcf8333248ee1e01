package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Outcome is the closed set of admission results.
type Outcome string

const (
	OutcomeValid       Outcome = "Valid"
	OutcomeAlreadyUsed Outcome = "AlreadyUsed"
	OutcomeExpired     Outcome = "Expired"
	OutcomeNotFound    Outcome = "NotFound"
	OutcomeWrongEvent  Outcome = "WrongEvent"
	OutcomeInvalid     Outcome = "Invalid"
	OutcomeThrottled   Outcome = "Throttled"
)

// Outcomes lists every outcome in reporting order.
var Outcomes = []Outcome{
	OutcomeValid,
	OutcomeAlreadyUsed,
	OutcomeExpired,
	OutcomeNotFound,
	OutcomeWrongEvent,
	OutcomeInvalid,
	OutcomeThrottled,
}

func (o Outcome) IsValid() bool {
	for _, known := range Outcomes {
		if o == known {
			return true
		}
	}
	return false
}

// ScanRequest is what a guard station submits for one scan.
type ScanRequest struct {
	Code    string `json:"code"`
	GuardID string `json:"guard_id"`
	EventID int64  `json:"event_id"`
	Note    string `json:"note,omitempty"`
	Origin  string `json:"-"`
}

type GuestSummary struct {
	Name     string `json:"guest_name"`
	Category string `json:"category"`
	IsVip    bool   `json:"is_vip"`
}

type DecisionMetadata struct {
	Code             string     `json:"code"`
	GuardID          string     `json:"guard_id"`
	EventID          int64      `json:"event_id"`
	ScannedAt        time.Time  `json:"scanned_at"`
	Message          string     `json:"message"`
	TicketKind       TicketKind `json:"ticket_kind,omitempty"`
	TicketID         int64      `json:"ticket_id,omitempty"`
	ScanID           string     `json:"scan_id,omitempty"`
	PreviouslyUsedAt *time.Time `json:"previously_used_at,omitempty"`
	PreviouslyUsedBy string     `json:"previously_used_by,omitempty"`
	// Replayed is set when the decision came from the suppression cache.
	Replayed bool `json:"replayed,omitempty"`
}

// Decision is the result of one admission attempt.
type Decision struct {
	Outcome  Outcome          `json:"outcome"`
	Guest    *GuestSummary    `json:"guest,omitempty"`
	Metadata DecisionMetadata `json:"metadata"`
}

func (d Decision) Admitted() bool {
	return d.Outcome == OutcomeValid
}

// ScanRecord is the immutable ledger entry for one scan attempt. Guest
// fields are copied at write time.
type ScanRecord struct {
	bun.BaseModel `bun:"table:scan_records"`

	ID         string     `bun:"id,pk" json:"id"`
	Code       string     `bun:"code,notnull" json:"code"`
	TicketKind TicketKind `bun:"ticket_kind,nullzero" json:"ticket_kind,omitempty"`
	TicketID   int64      `bun:"ticket_id,nullzero" json:"ticket_id,omitempty"`
	EventID    int64      `bun:"event_id,notnull" json:"event_id"`
	Outcome    Outcome    `bun:"outcome,notnull" json:"outcome"`
	GuardID    string     `bun:"guard_id,notnull" json:"guard_id"`
	ScannedAt  time.Time  `bun:"scanned_at,notnull" json:"scanned_at"`
	Notes      string     `bun:"notes,nullzero" json:"notes,omitempty"`
	IPAddress  string     `bun:"ip_address,nullzero" json:"ip_address,omitempty"`
	GuestName  string     `bun:"guest_name,nullzero" json:"guest_name,omitempty"`
	Category   string     `bun:"category,nullzero" json:"category,omitempty"`
	IsVip      bool       `bun:"is_vip,notnull,default:false" json:"is_vip"`
}

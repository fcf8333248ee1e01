package checkin

import (
	"context"
	"time"

	"ms-checkin/internal/models"
)

// TicketStore is owned by the issuance subsystem.
type TicketStore interface {
	// Resolve returns nil without error when no ticket carries code.
	Resolve(ctx context.Context, code string) (models.Ticket, error)
	// TryMarkUsed flips the used flag only if it is still false at write
	// time and reports whether this call performed the flip.
	TryMarkUsed(ctx context.Context, code, guardID string, now time.Time) (bool, error)
}

// ScanLedger is the append-only record of scan attempts.
type ScanLedger interface {
	AppendScanRecord(ctx context.Context, record *models.ScanRecord) error
	CountByOutcome(ctx context.Context, eventID int64) (map[models.Outcome]int, error)
	ListRecent(ctx context.Context, eventID int64, limit int) ([]models.ScanRecord, error)
}

// RecordSink receives every record after it was durably appended.
type RecordSink interface {
	Add(record models.ScanRecord)
}

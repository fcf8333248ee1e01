package db

import (
	"context"
	"fmt"

	"ms-checkin/internal/models"
)

type outcomeCount struct {
	Outcome models.Outcome `bun:"outcome"`
	Count   int            `bun:"count"`
}

// AppendScanRecord writes one ledger entry. Records are never updated.
func (d *DB) AppendScanRecord(ctx context.Context, record *models.ScanRecord) error {
	if _, err := d.Bun.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert scan record %s: %w", record.ID, err)
	}
	return nil
}

func (d *DB) CountByOutcome(ctx context.Context, eventID int64) (map[models.Outcome]int, error) {
	var rows []outcomeCount
	err := d.Bun.NewSelect().
		Model((*models.ScanRecord)(nil)).
		Column("outcome").
		ColumnExpr("COUNT(*) AS count").
		Where("event_id = ?", eventID).
		Group("outcome").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to count scans for event %d: %w", eventID, err)
	}

	counts := make(map[models.Outcome]int, len(rows))
	for _, row := range rows {
		counts[row.Outcome] = row.Count
	}
	return counts, nil
}

// ListRecent returns the newest records for the event, newest first.
func (d *DB) ListRecent(ctx context.Context, eventID int64, limit int) ([]models.ScanRecord, error) {
	var records []models.ScanRecord
	err := d.Bun.NewSelect().
		Model(&records).
		Where("event_id = ?", eventID).
		Order("scanned_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent scans for event %d: %w", eventID, err)
	}
	return records, nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-checkin/internal/models"
)

// DB is the bun backed ticket store and scan ledger.
type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// Resolve finds the ticket carrying code, named tickets first. It returns
// nil, nil when neither table has the code.
func (d *DB) Resolve(ctx context.Context, code string) (models.Ticket, error) {
	var named models.NamedTicket
	err := d.Bun.NewSelect().
		Model(&named).
		Relation("Guest").
		Where("?TableAlias.code = ?", code).
		Limit(1).
		Scan(ctx)
	if err == nil {
		return &named, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load named ticket %q: %w", code, err)
	}

	var anonymous models.AnonymousTicket
	err = d.Bun.NewSelect().
		Model(&anonymous).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err == nil {
		return &anonymous, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load anonymous ticket %q: %w", code, err)
	}
	return nil, nil
}

// TryMarkUsed flips used from false to true in a single conditional update.
// It reports false if the ticket was already used or does not exist.
func (d *DB) TryMarkUsed(ctx context.Context, code, guardID string, now time.Time) (bool, error) {
	for _, model := range []interface{}{(*models.NamedTicket)(nil), (*models.AnonymousTicket)(nil)} {
		res, err := d.Bun.NewUpdate().
			Model(model).
			Set("used = ?", true).
			Set("used_at = ?", now).
			Set("used_by_guard = ?", guardID).
			Where("code = ?", code).
			Where("used = ?", false).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to mark ticket %q used: %w", code, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to read rows affected for %q: %w", code, err)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// CountTickets reports how many tickets of either kind belong to the event
// and how many of those are used.
func (d *DB) CountTickets(ctx context.Context, eventID int64) (total, used int, err error) {
	for _, model := range []interface{}{(*models.NamedTicket)(nil), (*models.AnonymousTicket)(nil)} {
		n, err := d.Bun.NewSelect().Model(model).Where("event_id = ?", eventID).Count(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to count tickets for event %d: %w", eventID, err)
		}
		u, err := d.Bun.NewSelect().Model(model).Where("event_id = ?", eventID).Where("used = ?", true).Count(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to count used tickets for event %d: %w", eventID, err)
		}
		total += n
		used += u
	}
	return total, used, nil
}

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
}

func (d *DB) CreateGuest(ctx context.Context, guest *models.Guest) error {
	_, err := d.Bun.NewInsert().Model(guest).Exec(ctx)
	return err
}

// CreateNamedTicket inserts the ticket and claims its code in the registry in
// one transaction. A code already issued to any ticket is rejected.
func (d *DB) CreateNamedTicket(ctx context.Context, ticket *models.NamedTicket) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(ticket).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert named ticket: %w", err)
		}
		return claimCode(ctx, tx, ticket)
	})
}

func (d *DB) CreateAnonymousTicket(ctx context.Context, ticket *models.AnonymousTicket) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(ticket).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert anonymous ticket: %w", err)
		}
		return claimCode(ctx, tx, ticket)
	})
}

func claimCode(ctx context.Context, tx bun.Tx, t models.Ticket) error {
	entry := &models.TicketCode{
		Code:     t.TicketCode(),
		Kind:     t.Kind(),
		TicketID: t.TicketID(),
		EventID:  t.Event(),
	}
	if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
		return fmt.Errorf("code %q is already issued: %w", entry.Code, err)
	}
	return nil
}

// CreateTables creates every table the service uses. Production schemas come
// from the SQL migrations; this is for local seeding and tests.
func CreateTables(ctx context.Context, bunDB *bun.DB) error {
	tables := []interface{}{
		(*models.Event)(nil),
		(*models.Guest)(nil),
		(*models.NamedTicket)(nil),
		(*models.AnonymousTicket)(nil),
		(*models.TicketCode)(nil),
		(*models.ScanRecord)(nil),
	}
	for _, model := range tables {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}
	return nil
}

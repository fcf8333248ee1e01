package main

import (
	"context"
	"fmt"
	"time"

	"ms-checkin/internal/checkin/db"
	"ms-checkin/internal/models"
	"ms-checkin/internal/utils"
)

type seedOptions struct {
	EventName   string
	Host        string
	EventDate   time.Time
	Guests      []models.Guest
	Anonymous   int
	Batch       int
	AnonymousIn time.Duration
}

type seedResult struct {
	Event *models.Event
	Codes []string
	// Labels maps a printable name (guest name or guest number) to its code.
	Labels map[string]string
}

var demoGuests = []models.Guest{
	{Name: "Layla Hassan", Category: "Family", IsVip: true, PhoneNumber: "+201001234567"},
	{Name: "Omar Farouk", Category: "Family", IsVip: true},
	{Name: "Nadia Karim", Category: "Friends"},
	{Name: "Youssef Adel", Category: "Colleagues"},
}

// seed creates one event with a named ticket per guest and a batch of
// anonymous tickets. Named tickets expire a day after the event; anonymous
// ones after AnonymousIn, or never when it is zero.
func seed(ctx context.Context, store *db.DB, opts seedOptions) (*seedResult, error) {
	event := &models.Event{Name: opts.EventName, Host: opts.Host, Date: opts.EventDate}
	if err := store.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	result := &seedResult{Event: event, Labels: make(map[string]string)}

	for _, g := range opts.Guests {
		guest := g
		guest.EventID = event.ID
		if err := store.CreateGuest(ctx, &guest); err != nil {
			return nil, fmt.Errorf("failed to create guest %q: %w", guest.Name, err)
		}
		code, err := utils.GenerateTicketCode()
		if err != nil {
			return nil, err
		}
		ticket := &models.NamedTicket{
			Code:      code,
			GuestID:   guest.ID,
			EventID:   event.ID,
			ExpiresAt: opts.EventDate.Add(24 * time.Hour),
		}
		if err := store.CreateNamedTicket(ctx, ticket); err != nil {
			return nil, fmt.Errorf("failed to create ticket for %q: %w", guest.Name, err)
		}
		result.Codes = append(result.Codes, code)
		result.Labels[guest.Name] = code
	}

	for i := 1; i <= opts.Anonymous; i++ {
		code, err := utils.GenerateTicketCode()
		if err != nil {
			return nil, err
		}
		ticket := &models.AnonymousTicket{
			Code:        code,
			GuestLabel:  utils.GuestLabel(i),
			GuestNumber: utils.GuestNumber(i, opts.Batch),
			BatchNumber: opts.Batch,
			EventID:     event.ID,
		}
		if opts.AnonymousIn > 0 {
			ticket.ExpiresAt = opts.EventDate.Add(opts.AnonymousIn)
		}
		if err := store.CreateAnonymousTicket(ctx, ticket); err != nil {
			return nil, fmt.Errorf("failed to create anonymous ticket %d: %w", i, err)
		}
		result.Codes = append(result.Codes, code)
		result.Labels[ticket.GuestNumber] = code
	}
	return result, nil
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AnonymousCategory is reported for every anonymous ticket.
const AnonymousCategory = "Anonymous Guest"

type TicketKind string

const (
	TicketKindNamed     TicketKind = "named"
	TicketKindAnonymous TicketKind = "anonymous"
)

// Ticket is the validation contract shared by named and anonymous tickets.
// The set of implementations is closed to this package.
type Ticket interface {
	Kind() TicketKind
	TicketID() int64
	TicketCode() string
	Event() int64
	// Expiry reports the expiry timestamp and whether the ticket has one.
	Expiry() (time.Time, bool)
	IsUsed() bool
	UsedInfo() (at time.Time, guard string)
	Summary() GuestSummary

	isTicket()
}

type Guest struct {
	bun.BaseModel `bun:"table:guests"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	EventID     int64     `bun:"event_id,notnull" json:"event_id"`
	Name        string    `bun:"name,notnull" json:"name"`
	PhoneNumber string    `bun:"phone_number" json:"phone_number"`
	Email       string    `bun:"email,nullzero" json:"email,omitempty"`
	Category    string    `bun:"category,nullzero" json:"category,omitempty"`
	IsVip       bool      `bun:"is_vip,notnull,default:false" json:"is_vip"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// NamedTicket is an invitation bound to a pre-registered guest.
type NamedTicket struct {
	bun.BaseModel `bun:"table:named_tickets"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Code        string    `bun:"code,unique,notnull" json:"code"`
	GuestID     int64     `bun:"guest_id,notnull" json:"guest_id"`
	EventID     int64     `bun:"event_id,notnull" json:"event_id"`
	ImagePath   string    `bun:"image_path,nullzero" json:"image_path,omitempty"`
	ExpiresAt   time.Time `bun:"expires_at,notnull" json:"expires_at"`
	Used        bool      `bun:"used,notnull,default:false" json:"used"`
	UsedAt      time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	UsedByGuard string    `bun:"used_by_guard,nullzero" json:"used_by_guard,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`

	Guest *Guest `bun:"rel:belongs-to,join:guest_id=id" json:"guest,omitempty"`
}

func (t *NamedTicket) Kind() TicketKind          { return TicketKindNamed }
func (t *NamedTicket) TicketID() int64           { return t.ID }
func (t *NamedTicket) TicketCode() string        { return t.Code }
func (t *NamedTicket) Event() int64              { return t.EventID }
func (t *NamedTicket) Expiry() (time.Time, bool) { return t.ExpiresAt, !t.ExpiresAt.IsZero() }
func (t *NamedTicket) IsUsed() bool              { return t.Used }
func (t *NamedTicket) UsedInfo() (time.Time, string) {
	return t.UsedAt, t.UsedByGuard
}
func (t *NamedTicket) isTicket() {}

func (t *NamedTicket) Summary() GuestSummary {
	if t.Guest == nil {
		return GuestSummary{}
	}
	return GuestSummary{
		Name:     t.Guest.Name,
		Category: t.Guest.Category,
		IsVip:    t.Guest.IsVip,
	}
}

// AnonymousTicket is issued in batches with a generated guest label and no
// contact identity.
type AnonymousTicket struct {
	bun.BaseModel `bun:"table:anonymous_tickets"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Code        string    `bun:"code,unique,notnull" json:"code"`
	GuestLabel  string    `bun:"guest_label,notnull" json:"guest_label"`
	GuestNumber string    `bun:"guest_number,notnull" json:"guest_number"`
	BatchNumber int       `bun:"batch_number,notnull,default:1" json:"batch_number"`
	EventID     int64     `bun:"event_id,notnull" json:"event_id"`
	ImagePath   string    `bun:"image_path,nullzero" json:"image_path,omitempty"`
	ExpiresAt   time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	Used        bool      `bun:"used,notnull,default:false" json:"used"`
	UsedAt      time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	UsedByGuard string    `bun:"used_by_guard,nullzero" json:"used_by_guard,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

func (t *AnonymousTicket) Kind() TicketKind          { return TicketKindAnonymous }
func (t *AnonymousTicket) TicketID() int64           { return t.ID }
func (t *AnonymousTicket) TicketCode() string        { return t.Code }
func (t *AnonymousTicket) Event() int64              { return t.EventID }
func (t *AnonymousTicket) Expiry() (time.Time, bool) { return t.ExpiresAt, !t.ExpiresAt.IsZero() }
func (t *AnonymousTicket) IsUsed() bool              { return t.Used }
func (t *AnonymousTicket) UsedInfo() (time.Time, string) {
	return t.UsedAt, t.UsedByGuard
}
func (t *AnonymousTicket) isTicket() {}

func (t *AnonymousTicket) Summary() GuestSummary {
	return GuestSummary{
		Name:     t.GuestLabel,
		Category: AnonymousCategory,
		IsVip:    false,
	}
}

// TicketCode registers every issued code once so codes stay unique across
// both ticket tables.
type TicketCode struct {
	bun.BaseModel `bun:"table:ticket_codes"`

	Code     string     `bun:"code,pk" json:"code"`
	Kind     TicketKind `bun:"kind,notnull" json:"kind"`
	TicketID int64      `bun:"ticket_id,notnull" json:"ticket_id"`
	EventID  int64      `bun:"event_id,notnull" json:"event_id"`
}

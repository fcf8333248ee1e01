package checkin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

const (
	msgWelcome     = "Welcome!"
	msgExpired     = "Invitation has expired"
	msgNotFound    = "QR code not found"
	msgWrongEvent  = "QR code is for a different event"
	msgInvalid     = "Invalid QR code or guard name"
	msgThrottled   = "QR code is being processed by another scanner"
	usedTimeLayout = "15:04:05"
)

// Engine decides, exactly once per ticket, whether a scanned code grants
// entry.
type Engine struct {
	Tickets     TicketStore
	Ledger      ScanLedger
	Coordinator *ScanCoordinator
	// Recent is optional.
	Recent RecordSink
	Logger *logger.Logger

	now   func() time.Time
	newID func() string
}

func NewEngine(tickets TicketStore, ledger ScanLedger, coordinator *ScanCoordinator, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{
		Tickets:     tickets,
		Ledger:      ledger,
		Coordinator: coordinator,
		Logger:      log,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
}

// Decide produces one decision for a scan. Domain rejections are returned as
// decisions; only persistence failures (wrapping ErrStore) and caller
// contract violations are returned as errors.
func (e *Engine) Decide(ctx context.Context, req models.ScanRequest) (models.Decision, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.GuardID = strings.TrimSpace(req.GuardID)

	if req.Code == "" || req.GuardID == "" {
		d := e.newDecision(req, e.now())
		d.Outcome = models.OutcomeInvalid
		d.Metadata.Message = msgInvalid
		return d, nil
	}
	if req.EventID <= 0 {
		return models.Decision{}, ErrMissingEvent
	}

	var decision models.Decision
	err := e.Coordinator.WithExclusive(ctx, req.Code, func(ctx context.Context) error {
		var err error
		decision, err = e.decideLocked(ctx, req)
		return err
	})
	if errors.Is(err, ErrLockTimeout) {
		return e.throttled(ctx, req)
	}
	if err != nil {
		return models.Decision{}, err
	}
	return decision, nil
}

func (e *Engine) decideLocked(ctx context.Context, req models.ScanRequest) (models.Decision, error) {
	now := e.now()
	key := CacheKey(req.EventID, req.Code)

	if cached, ok := e.Coordinator.Recall(ctx, key, now); ok {
		return e.replay(ctx, cached, req, now)
	}

	d, err := e.evaluate(ctx, req, now)
	if err != nil {
		return models.Decision{}, err
	}
	e.Coordinator.Remember(context.WithoutCancel(ctx), key, d)
	return d, nil
}

func (e *Engine) evaluate(ctx context.Context, req models.ScanRequest, now time.Time) (models.Decision, error) {
	ticket, err := e.Tickets.Resolve(ctx, req.Code)
	if err != nil {
		return models.Decision{}, storeError("resolve ticket", err)
	}

	d := e.newDecision(req, now)
	if ticket == nil {
		d.Outcome = models.OutcomeNotFound
		d.Metadata.Message = msgNotFound
		return e.recorded(ctx, d, req)
	}

	summary := ticket.Summary()
	d.Guest = &summary
	d.Metadata.TicketKind = ticket.Kind()
	d.Metadata.TicketID = ticket.TicketID()

	switch {
	case ticket.Event() != req.EventID:
		d.Outcome = models.OutcomeWrongEvent
		d.Metadata.Message = msgWrongEvent
	case isExpired(ticket, now):
		d.Outcome = models.OutcomeExpired
		d.Metadata.Message = msgExpired
	case ticket.IsUsed():
		usedAt, usedBy := ticket.UsedInfo()
		markAlreadyUsed(&d, usedAt, usedBy)
	default:
		// From the flip on, the ledger append must land even if the guard
		// device drops the request.
		ctx = context.WithoutCancel(ctx)
		won, err := e.Tickets.TryMarkUsed(ctx, req.Code, req.GuardID, now)
		if err != nil {
			return models.Decision{}, storeError("mark ticket used", err)
		}
		if won {
			d.Outcome = models.OutcomeValid
			d.Metadata.Message = msgWelcome
			break
		}
		// Another instance flipped the flag between our read and write.
		latest, err := e.Tickets.Resolve(ctx, req.Code)
		if err != nil {
			return models.Decision{}, storeError("reload ticket", err)
		}
		if latest == nil {
			latest = ticket
		}
		usedAt, usedBy := latest.UsedInfo()
		markAlreadyUsed(&d, usedAt, usedBy)
	}

	return e.recorded(ctx, d, req)
}

// replay answers from a cached decision without touching the ticket store.
// A resubmission by the same guard is absorbed entirely. Another guard gets
// its own ledger entry, and a cached admission becomes AlreadyUsed for it.
func (e *Engine) replay(ctx context.Context, cached models.Decision, req models.ScanRequest, now time.Time) (models.Decision, error) {
	d := cached
	d.Metadata.Replayed = true

	if cached.Metadata.GuardID == req.GuardID {
		e.Logger.Debugf("CHECKIN", "Duplicate scan of %s by %s absorbed (%s)", req.Code, req.GuardID, cached.Outcome)
		return d, nil
	}

	d.Metadata.GuardID = req.GuardID
	d.Metadata.ScannedAt = now
	d.Metadata.ScanID = ""
	if cached.Outcome == models.OutcomeValid {
		markAlreadyUsed(&d, cached.Metadata.ScannedAt, cached.Metadata.GuardID)
	}
	return e.recorded(ctx, d, req)
}

func (e *Engine) throttled(ctx context.Context, req models.ScanRequest) (models.Decision, error) {
	d := e.newDecision(req, e.now())
	d.Outcome = models.OutcomeThrottled
	d.Metadata.Message = msgThrottled
	return e.recorded(ctx, d, req)
}

func (e *Engine) recorded(ctx context.Context, d models.Decision, req models.ScanRequest) (models.Decision, error) {
	if err := e.append(ctx, &d, req); err != nil {
		return models.Decision{}, err
	}
	return d, nil
}

// append writes the ledger record for d and stamps its id on the decision.
func (e *Engine) append(ctx context.Context, d *models.Decision, req models.ScanRequest) error {
	record := &models.ScanRecord{
		ID:         e.newID(),
		Code:       req.Code,
		TicketKind: d.Metadata.TicketKind,
		TicketID:   d.Metadata.TicketID,
		EventID:    req.EventID,
		Outcome:    d.Outcome,
		GuardID:    req.GuardID,
		ScannedAt:  d.Metadata.ScannedAt,
		Notes:      req.Note,
		IPAddress:  req.Origin,
	}
	if record.Notes == "" {
		record.Notes = d.Metadata.Message
	}
	if d.Guest != nil {
		record.GuestName = d.Guest.Name
		record.Category = d.Guest.Category
		record.IsVip = d.Guest.IsVip
	}

	if err := e.Ledger.AppendScanRecord(ctx, record); err != nil {
		e.Logger.Errorf("LEDGER", "Failed to record %s scan of %s by %s: %v", d.Outcome, req.Code, req.GuardID, err)
		return storeError("append scan record", err)
	}
	d.Metadata.ScanID = record.ID
	if e.Recent != nil {
		e.Recent.Add(*record)
	}
	e.Logger.LogScan(string(d.Outcome), req.Code, req.GuardID, d.Metadata.Message)
	return nil
}

func (e *Engine) newDecision(req models.ScanRequest, now time.Time) models.Decision {
	return models.Decision{
		Metadata: models.DecisionMetadata{
			Code:      req.Code,
			GuardID:   req.GuardID,
			EventID:   req.EventID,
			ScannedAt: now,
		},
	}
}

func isExpired(t models.Ticket, now time.Time) bool {
	expiresAt, ok := t.Expiry()
	return ok && expiresAt.Before(now)
}

func markAlreadyUsed(d *models.Decision, usedAt time.Time, usedBy string) {
	d.Outcome = models.OutcomeAlreadyUsed
	d.Metadata.PreviouslyUsedBy = usedBy
	if usedAt.IsZero() {
		d.Metadata.PreviouslyUsedAt = nil
		d.Metadata.Message = "Already used"
		return
	}
	at := usedAt
	d.Metadata.PreviouslyUsedAt = &at
	d.Metadata.Message = "Already used at " + usedAt.Format(usedTimeLayout)
}

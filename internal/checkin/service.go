package checkin

import (
	"context"
	"errors"
	"fmt"

	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
)

// StatsRequester schedules a stats recomputation for an event.
type StatsRequester interface {
	Request(eventID int64)
}

// Service is what the transport layer calls: it runs the engine and
// announces the outcome.
type Service struct {
	Engine   *Engine
	Notifier Notifier
	Stats    StatsRequester
	Logger   *logger.Logger
}

func NewService(engine *Engine, notifier Notifier, stats StatsRequester, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{Engine: engine, Notifier: notifier, Stats: stats, Logger: log}
}

func (s *Service) Scan(ctx context.Context, req models.ScanRequest) (models.Decision, error) {
	d, err := s.Engine.Decide(ctx, req)
	if err != nil {
		if errors.Is(err, ErrStore) {
			s.Logger.Error("CHECKIN", fmt.Sprintf("Scan of %q for event %d failed: %v", req.Code, req.EventID, err))
		}
		return models.Decision{}, err
	}

	if s.Notifier != nil {
		s.Notifier.ScanDecided(ctx, models.NewScanDecisionEvent(d))
	}
	if s.Stats != nil && d.Metadata.EventID > 0 {
		s.Stats.Request(d.Metadata.EventID)
	}
	return d, nil
}

// InvalidateCodes drops cached decisions after the issuance subsystem
// changed tickets.
func (s *Service) InvalidateCodes(ctx context.Context, change models.TicketsChangedEvent) error {
	if err := s.Engine.Coordinator.Forget(ctx, change.EventID, change.Codes...); err != nil {
		return fmt.Errorf("failed to invalidate %d codes for event %d: %w", len(change.Codes), change.EventID, err)
	}
	s.Logger.Infof("CHECKIN", "Invalidated %d cached decisions for event %d", len(change.Codes), change.EventID)
	return nil
}

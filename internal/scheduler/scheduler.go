package scheduler

import (
	"context"

	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/service"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the daily sweeps on cron expressions inside the process.
// The HTTP trigger endpoints remain the canonical entry points; this exists
// for deployments without an external time source. Sweeps are idempotent, so
// an external trigger racing a scheduled run is harmless.
type Scheduler struct {
	cfg               *config.Configuration
	logger            *logger.Logger
	recurrenceService service.RecurrenceService
	dunningService    service.DunningService

	cron *cron.Cron
}

func New(cfg *config.Configuration, logger *logger.Logger, recurrenceService service.RecurrenceService, dunningService service.DunningService) *Scheduler {
	return &Scheduler{
		cfg:               cfg,
		logger:            logger,
		recurrenceService: recurrenceService,
		dunningService:    dunningService,
	}
}

// Start registers the sweep jobs and starts the cron loop. It is a no-op
// when the scheduler is disabled in config.
func (s *Scheduler) Start() error {
	if !s.cfg.Scheduler.Enabled {
		s.logger.Info("in-process scheduler disabled")
		return nil
	}

	s.cron = cron.New()

	if _, err := s.cron.AddFunc(s.cfg.Scheduler.RecurrenceCron, func() {
		ctx := types.NewSystemContext(context.Background())
		s.recurrenceService.RunSweep(ctx)
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.cfg.Scheduler.DunningCron, func() {
		ctx := types.NewSystemContext(context.Background())
		s.dunningService.RunSweep(ctx)
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Infow("in-process scheduler started",
		"recurrence_cron", s.cfg.Scheduler.RecurrenceCron,
		"dunning_cron", s.cfg.Scheduler.DunningCron)
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package scheduler runs the periodic credit-reset sweep. The sweep is an
// optimization: the ledger applies the same reset lazily on access, so a
// missed run never loses a reset.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chatrelay/internal/ledger"
	"github.com/capitalize-ai/chatrelay/pkg/logger"
)

// Scheduler owns the cron runner for background ledger maintenance.
type Scheduler struct {
	cron    *cron.Cron
	credits *ledger.Service
	logger  *logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler around the credit ledger.
func New(credits *ledger.Service, log *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		credits: credits,
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers the monthly sweep at midnight UTC on the first of each
// month and launches the runner.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("0 0 1 * *", func() {
		if err := s.credits.SweepResets(s.ctx); err != nil {
			s.logger.Error("credit sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started")
	return nil
}

// Stop halts the runner and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.cancel()
	s.logger.Info("scheduler stopped")
}

// Package ledger meters usage credits per owner with lazy monthly reset
// semantics. Premium owners are unmetered and never debited.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatrelay/internal/apperr"
	"github.com/capitalize-ai/chatrelay/internal/model"
	"github.com/capitalize-ai/chatrelay/internal/store"
	"github.com/capitalize-ai/chatrelay/pkg/logger"
	"github.com/capitalize-ai/chatrelay/pkg/metrics"
)

// Service mediates access to the credit ledger store. Each access first
// reconciles a stale monthly reset, then applies the requested mutation.
type Service struct {
	store     store.LedgerStore
	allotment int
	logger    *logger.Logger

	now func() time.Time
}

// New creates a ledger service with the given monthly allotment for
// newly seen owners.
func New(ledgerStore store.LedgerStore, monthlyAllotment int, log *logger.Logger) *Service {
	return &Service{
		store:     ledgerStore,
		allotment: monthlyAllotment,
		logger:    log,
		now:       time.Now,
	}
}

// Balance returns the owner's reconciled ledger, creating it with the
// full allotment on first access.
func (s *Service) Balance(ctx context.Context, ownerID string, tier model.Tier) (*model.CreditLedger, error) {
	return s.reconcile(ctx, ownerID, tier)
}

// Debit consumes one credit and returns the remaining balance. Premium
// owners pass through untouched. An exhausted balance returns an
// insufficient-credits error carrying the remaining count.
func (s *Service) Debit(ctx context.Context, ownerID string, tier model.Tier) (int, error) {
	entry, err := s.reconcile(ctx, ownerID, tier)
	if err != nil {
		return 0, err
	}

	if entry.Tier == model.TierPremium {
		return entry.Remaining, nil
	}

	if entry.Remaining < 1 {
		return entry.Remaining, apperr.InsufficientCredits(entry.Remaining)
	}

	entry.Remaining--
	if err := s.store.Put(ctx, entry); err != nil {
		return 0, fmt.Errorf("failed to debit credit: %w", err)
	}

	metrics.CreditsDebited.Inc()
	return entry.Remaining, nil
}

// Refund credits back one unit after a failed completion. Premium owners
// pass through untouched.
func (s *Service) Refund(ctx context.Context, ownerID string, tier model.Tier) error {
	entry, err := s.reconcile(ctx, ownerID, tier)
	if err != nil {
		return err
	}

	if entry.Tier == model.TierPremium {
		return nil
	}

	entry.Remaining++
	if err := s.store.Put(ctx, entry); err != nil {
		return fmt.Errorf("failed to refund credit: %w", err)
	}

	metrics.CreditsRefunded.Inc()
	return nil
}

// SweepResets applies the monthly reset eagerly across all ledgers. The
// lazy check in reconcile remains authoritative; the sweep just keeps
// stored balances fresh between requests.
func (s *Service) SweepResets(ctx context.Context) error {
	entries, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list ledgers: %w", err)
	}

	now := s.now()
	reset := 0
	for _, entry := range entries {
		if !entry.ResetDue(now) {
			continue
		}
		entry.Remaining = entry.MonthlyAllotment
		entry.LastReset = now
		if err := s.store.Put(ctx, entry); err != nil {
			return fmt.Errorf("failed to reset ledger for %s: %w", entry.OwnerID, err)
		}
		reset++
	}

	s.logger.Info("monthly credit sweep complete",
		zap.Int("ledgers", len(entries)),
		zap.Int("reset", reset),
	)
	return nil
}

// reconcile loads the owner's ledger, creating it on first access,
// syncing the stored tier with the authenticated one, and applying a
// pending monthly reset.
func (s *Service) reconcile(ctx context.Context, ownerID string, tier model.Tier) (*model.CreditLedger, error) {
	entry, err := s.store.Get(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		entry = &model.CreditLedger{
			OwnerID:          ownerID,
			Tier:             tier,
			Remaining:        s.allotment,
			MonthlyAllotment: s.allotment,
			LastReset:        s.now(),
		}
		if err := s.store.Put(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to create ledger: %w", err)
		}
		return entry, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	dirty := false
	if entry.Tier != tier {
		entry.Tier = tier
		dirty = true
	}

	if now := s.now(); entry.ResetDue(now) {
		entry.Remaining = entry.MonthlyAllotment
		entry.LastReset = now
		dirty = true
	}

	if dirty {
		if err := s.store.Put(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to reconcile ledger: %w", err)
		}
	}
	return entry, nil
}

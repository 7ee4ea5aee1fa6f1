package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/capitalize-ai/chatrelay/internal/apperr"
	"github.com/capitalize-ai/chatrelay/internal/model"
	"github.com/capitalize-ai/chatrelay/internal/store/memory"
	"github.com/capitalize-ai/chatrelay/pkg/logger"
)

func newTestService(allotment int) *Service {
	backend := memory.NewBackend()
	return New(backend.Ledgers(), allotment, logger.NewNop())
}

func TestBalanceCreatesLedgerOnFirstAccess(t *testing.T) {
	svc := newTestService(50)
	ctx := context.Background()

	entry, err := svc.Balance(ctx, "owner-1", model.TierFree)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if entry.Remaining != 50 || entry.MonthlyAllotment != 50 {
		t.Fatalf("unexpected new ledger: %+v", entry)
	}
	if entry.Tier != model.TierFree {
		t.Fatalf("expected free tier, got %s", entry.Tier)
	}
}

func TestDebitDecrementsAndReportsRemaining(t *testing.T) {
	svc := newTestService(50)
	ctx := context.Background()

	remaining, err := svc.Debit(ctx, "owner-1", model.TierFree)
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if remaining != 49 {
		t.Fatalf("expected 49 remaining, got %d", remaining)
	}

	entry, _ := svc.Balance(ctx, "owner-1", model.TierFree)
	if entry.Remaining != 49 {
		t.Fatalf("debit not persisted, remaining = %d", entry.Remaining)
	}
}

func TestDebitExhaustedBalance(t *testing.T) {
	svc := newTestService(1)
	ctx := context.Background()

	if _, err := svc.Debit(ctx, "owner-1", model.TierFree); err != nil {
		t.Fatalf("first debit failed: %v", err)
	}

	remaining, err := svc.Debit(ctx, "owner-1", model.TierFree)
	if err == nil {
		t.Fatal("expected insufficient credits error")
	}
	if apperr.KindOf(err) != apperr.KindInsufficientCredits {
		t.Fatalf("unexpected error kind: %v", apperr.KindOf(err))
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", remaining)
	}

	appErr := apperr.As(err)
	if appErr == nil || appErr.Remaining != 0 {
		t.Fatalf("error does not carry remaining balance: %+v", appErr)
	}
}

func TestPremiumNeverDebited(t *testing.T) {
	svc := newTestService(50)
	ctx := context.Background()

	if _, err := svc.Debit(ctx, "owner-1", model.TierPremium); err != nil {
		t.Fatalf("premium debit failed: %v", err)
	}

	entry, _ := svc.Balance(ctx, "owner-1", model.TierPremium)
	if entry.Remaining != 50 {
		t.Fatalf("premium balance mutated: %d", entry.Remaining)
	}
}

func TestRefundRestoresCredit(t *testing.T) {
	svc := newTestService(50)
	ctx := context.Background()

	svc.Debit(ctx, "owner-1", model.TierFree)
	if err := svc.Refund(ctx, "owner-1", model.TierFree); err != nil {
		t.Fatalf("Refund failed: %v", err)
	}

	entry, _ := svc.Balance(ctx, "owner-1", model.TierFree)
	if entry.Remaining != 50 {
		t.Fatalf("expected 50 after refund, got %d", entry.Remaining)
	}
}

func TestMonthlyResetOnAccess(t *testing.T) {
	svc := newTestService(50)
	ctx := context.Background()

	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.Debit(ctx, "owner-1", model.TierFree)
	svc.Debit(ctx, "owner-1", model.TierFree)

	// Same month: no reset.
	now = time.Date(2025, time.March, 31, 23, 0, 0, 0, time.UTC)
	entry, _ := svc.Balance(ctx, "owner-1", model.TierFree)
	if entry.Remaining != 48 {
		t.Fatalf("reset fired within the same month, remaining = %d", entry.Remaining)
	}

	// Month rolled over: full allotment restored.
	now = time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	entry, err := svc.Balance(ctx, "owner-1", model.TierFree)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if entry.Remaining != 50 {
		t.Fatalf("expected full allotment after reset, got %d", entry.Remaining)
	}
	if !entry.LastReset.Equal(now) {
		t.Fatalf("last reset not updated: %v", entry.LastReset)
	}
}

func TestSweepResetsStaleLedgersOnly(t *testing.T) {
	backend := memory.NewBackend()
	svc := New(backend.Ledgers(), 50, logger.NewNop())

	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	ctx := context.Background()
	stale := &model.CreditLedger{
		OwnerID:          "stale",
		Tier:             model.TierFree,
		Remaining:        3,
		MonthlyAllotment: 50,
		LastReset:        time.Date(2025, time.May, 2, 0, 0, 0, 0, time.UTC),
	}
	fresh := &model.CreditLedger{
		OwnerID:          "fresh",
		Tier:             model.TierFree,
		Remaining:        7,
		MonthlyAllotment: 50,
		LastReset:        now,
	}
	backend.Ledgers().Put(ctx, stale)
	backend.Ledgers().Put(ctx, fresh)

	if err := svc.SweepResets(ctx); err != nil {
		t.Fatalf("SweepResets failed: %v", err)
	}

	got, _ := backend.Ledgers().Get(ctx, "stale")
	if got.Remaining != 50 {
		t.Fatalf("stale ledger not reset: %d", got.Remaining)
	}
	got, _ = backend.Ledgers().Get(ctx, "fresh")
	if got.Remaining != 7 {
		t.Fatalf("fresh ledger mutated: %d", got.Remaining)
	}
}

func TestTierDriftSyncedFromIdentity(t *testing.T) {
	svc := newTestService(50)
	ctx := context.Background()

	svc.Balance(ctx, "owner-1", model.TierFree)
	entry, err := svc.Balance(ctx, "owner-1", model.TierPremium)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if entry.Tier != model.TierPremium {
		t.Fatalf("tier not synced, got %s", entry.Tier)
	}
}

func TestRefundStoreFailurePropagates(t *testing.T) {
	svc := New(failingLedgerStore{}, 50, logger.NewNop())
	if err := svc.Refund(context.Background(), "owner-1", model.TierFree); err == nil {
		t.Fatal("expected error from failing store")
	}
}

type failingLedgerStore struct{}

func (failingLedgerStore) Get(ctx context.Context, ownerID string) (*model.CreditLedger, error) {
	return nil, errors.New("store down")
}
func (failingLedgerStore) Put(ctx context.Context, ledger *model.CreditLedger) error {
	return errors.New("store down")
}
func (failingLedgerStore) List(ctx context.Context) ([]*model.CreditLedger, error) {
	return nil, errors.New("store down")
}

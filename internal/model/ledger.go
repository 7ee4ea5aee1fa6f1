package model

import (
	"encoding/json"
	"time"
)

// Tier is the subscription tier of an owner.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// CreditLedger is the per-owner usage-credit record. Remaining is
// meaningless for premium owners, who are never debited.
type CreditLedger struct {
	OwnerID          string    `json:"owner_id"`
	Tier             Tier      `json:"tier"`
	Remaining        int       `json:"remaining"`
	MonthlyAllotment int       `json:"monthly_allotment"`
	LastReset        time.Time `json:"last_reset"`
}

// ResetDue reports whether the stored last-reset month/year differs from
// the month/year of now.
func (l *CreditLedger) ResetDue(now time.Time) bool {
	return l.LastReset.Month() != now.Month() || l.LastReset.Year() != now.Year()
}

// CreditBalance is the caller-visible credit count. Premium owners see
// the literal string "unlimited" instead of a number.
type CreditBalance struct {
	Unlimited bool
	Remaining int
}

// Unlimited is the balance reported for premium owners.
func UnlimitedBalance() CreditBalance {
	return CreditBalance{Unlimited: true}
}

// MeteredBalance is the balance reported for metered owners.
func MeteredBalance(remaining int) CreditBalance {
	return CreditBalance{Remaining: remaining}
}

func (b CreditBalance) MarshalJSON() ([]byte, error) {
	if b.Unlimited {
		return json.Marshal("unlimited")
	}
	return json.Marshal(b.Remaining)
}

func (b *CreditBalance) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Unlimited = s == "unlimited"
		b.Remaining = 0
		return nil
	}
	b.Unlimited = false
	return json.Unmarshal(data, &b.Remaining)
}

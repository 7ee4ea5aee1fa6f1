package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDeriveTitle(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"short", "Hello", "Hello"},
		{"exactly fifty", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"truncated", strings.Repeat("a", 51), strings.Repeat("a", 50) + "..."},
		{"multibyte counts runes", strings.Repeat("é", 60), strings.Repeat("é", 50) + "..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveTitle(tc.content); got != tc.want {
				t.Fatalf("DeriveTitle = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCreditBalanceJSON(t *testing.T) {
	metered, _ := json.Marshal(MeteredBalance(42))
	if string(metered) != "42" {
		t.Fatalf("metered balance = %s", metered)
	}

	unlimited, _ := json.Marshal(UnlimitedBalance())
	if string(unlimited) != `"unlimited"` {
		t.Fatalf("unlimited balance = %s", unlimited)
	}

	var b CreditBalance
	if err := json.Unmarshal([]byte(`"unlimited"`), &b); err != nil || !b.Unlimited {
		t.Fatalf("round trip unlimited: %+v, err %v", b, err)
	}
	if err := json.Unmarshal([]byte(`17`), &b); err != nil || b.Unlimited || b.Remaining != 17 {
		t.Fatalf("round trip metered: %+v, err %v", b, err)
	}
}

func TestResetDue(t *testing.T) {
	ledger := &CreditLedger{
		LastReset: time.Date(2025, time.March, 31, 23, 59, 0, 0, time.UTC),
	}

	if ledger.ResetDue(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("reset flagged within the same month")
	}
	if !ledger.ResetDue(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("reset missed across month boundary")
	}
	// Same month number, different year.
	if !ledger.ResetDue(time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("reset missed across year boundary")
	}
}

func TestConversationSummary(t *testing.T) {
	conv := &Conversation{
		ID:    "c1",
		Title: "t",
		Turns: []Turn{
			{ID: "t1", Role: RoleUser, Content: "hello"},
			{ID: "t2", Role: RoleAssistant, Content: "hi"},
		},
	}

	s := conv.Summary()
	if s.TurnCount != 2 {
		t.Fatalf("turn count = %d", s.TurnCount)
	}
	if s.LastTurn == nil || s.LastTurn.ID != "t2" {
		t.Fatalf("last turn = %+v", s.LastTurn)
	}

	empty := (&Conversation{ID: "c2"}).Summary()
	if empty.LastTurn != nil || empty.TurnCount != 0 {
		t.Fatalf("empty summary = %+v", empty)
	}
}

package prompt

import (
	"reflect"
	"strings"
	"testing"

	"github.com/capitalize-ai/chatrelay/internal/model"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestAssemblePrependsSystemDirective(t *testing.T) {
	turns := []model.Turn{
		{Role: model.RoleUser, Content: "hello"},
		{Role: model.RoleAssistant, Content: "hi"},
	}

	entries := Assemble(turns, "be helpful")

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Role != model.RoleSystem || entries[0].Content != "be helpful" {
		t.Fatalf("unexpected system entry: %+v", entries[0])
	}
	if entries[1].Role != model.RoleUser || entries[2].Role != model.RoleAssistant {
		t.Fatalf("turn order not preserved: %+v", entries)
	}
}

func TestAssembleWithoutDirective(t *testing.T) {
	entries := Assemble([]model.Turn{{Role: model.RoleUser, Content: "hey"}}, "")
	if len(entries) != 1 || entries[0].Role != model.RoleUser {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestTruncateKeepsSystemEntry(t *testing.T) {
	entries := []Entry{
		{Role: model.RoleSystem, Content: strings.Repeat("s", 40)}, // 10 tokens
		{Role: model.RoleUser, Content: strings.Repeat("u", 400)},  // 100 tokens
	}

	got := Truncate(entries, 15)

	if len(got) != 1 || got[0].Role != model.RoleSystem {
		t.Fatalf("system entry not retained alone: %+v", got)
	}
}

func TestTruncateRecencyWindow(t *testing.T) {
	// 10 tokens each; budget for system (10) plus two more.
	entries := []Entry{
		{Role: model.RoleSystem, Content: strings.Repeat("s", 40)},
		{Role: model.RoleUser, Content: strings.Repeat("a", 40)},
		{Role: model.RoleAssistant, Content: strings.Repeat("b", 40)},
		{Role: model.RoleUser, Content: strings.Repeat("c", 40)},
	}

	got := Truncate(entries, 30)

	want := []Entry{entries[0], entries[2], entries[3]}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTruncateStopsAtFirstOverflow(t *testing.T) {
	// The long middle entry blocks everything older than it even though
	// the oldest entry alone would fit.
	entries := []Entry{
		{Role: model.RoleUser, Content: strings.Repeat("a", 4)},    // 1 token
		{Role: model.RoleUser, Content: strings.Repeat("b", 400)},  // 100 tokens
		{Role: model.RoleUser, Content: strings.Repeat("c", 4)},    // 1 token
	}

	got := Truncate(entries, 10)

	if len(got) != 1 || got[0].Content != entries[2].Content {
		t.Fatalf("expected only the newest entry, got %+v", got)
	}
}

func TestTruncateIdempotent(t *testing.T) {
	entries := []Entry{
		{Role: model.RoleSystem, Content: strings.Repeat("s", 40)},
		{Role: model.RoleUser, Content: strings.Repeat("a", 200)},
		{Role: model.RoleAssistant, Content: strings.Repeat("b", 200)},
		{Role: model.RoleUser, Content: strings.Repeat("c", 200)},
	}

	once := Truncate(entries, 120)
	twice := Truncate(once, 120)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("truncation not idempotent: %+v vs %+v", once, twice)
	}
}

func TestTruncateFitsEverythingUnderBudget(t *testing.T) {
	entries := []Entry{
		{Role: model.RoleSystem, Content: "sys"},
		{Role: model.RoleUser, Content: "hello"},
		{Role: model.RoleAssistant, Content: "hi"},
	}

	got := Truncate(entries, 1000)
	if !reflect.DeepEqual(got, entries) {
		t.Fatalf("expected untouched prompt, got %+v", got)
	}
}

// Package prompt turns a stored turn thread into the ordered prompt sent
// to the model provider, bounded to a token budget.
package prompt

import (
	"github.com/capitalize-ai/chatrelay/internal/model"
)

// Entry is one prompt message: role plus content, nothing else crosses
// the provider boundary.
type Entry struct {
	Role    model.Role
	Content string
}

// EstimateTokens approximates the token cost of text as ceil(len/4).
// Deliberately inexact; the budget is a guardrail, not an accounting.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Assemble prepends the system directive (when non-empty) to the stored
// turns in storage order, keeping only user and assistant roles.
func Assemble(turns []model.Turn, systemDirective string) []Entry {
	entries := make([]Entry, 0, len(turns)+1)

	if systemDirective != "" {
		entries = append(entries, Entry{Role: model.RoleSystem, Content: systemDirective})
	}

	for _, turn := range turns {
		if turn.Role != model.RoleUser && turn.Role != model.RoleAssistant {
			continue
		}
		entries = append(entries, Entry{Role: turn.Role, Content: turn.Content})
	}

	return entries
}

// Truncate bounds a prompt to maxTokens. The leading system entry is
// always retained and charged first; the remaining entries are kept from
// the most recent backward, stopping at the first entry whose inclusion
// would exceed the budget. Relative order is preserved, so the result is
// a recency-biased window rather than a fixed message count.
func Truncate(entries []Entry, maxTokens int) []Entry {
	if len(entries) == 0 {
		return entries
	}

	total := 0
	first := 0
	out := []Entry{}

	if entries[0].Role == model.RoleSystem {
		out = append(out, entries[0])
		total += EstimateTokens(entries[0].Content)
		first = 1
	}

	kept := []Entry{}
	for i := len(entries) - 1; i >= first; i-- {
		cost := EstimateTokens(entries[i].Content)
		if total+cost > maxTokens {
			break
		}
		kept = append([]Entry{entries[i]}, kept...)
		total += cost
	}

	return append(out, kept...)
}

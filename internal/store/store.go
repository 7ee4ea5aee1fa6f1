// Package store defines the persistence contracts for conversations and
// credit ledgers. Implementations are ownership-blind: callers enforce
// access control before reading or mutating another owner's data.
package store

import (
	"context"
	"errors"

	"github.com/capitalize-ai/chatrelay/internal/model"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("record not found")

// ConversationStore is the durable mapping from conversation id to an
// ordered turn thread.
type ConversationStore interface {
	// Create stores a new conversation with an empty turn sequence.
	Create(ctx context.Context, ownerID, title string) (*model.Conversation, error)

	// Get returns the full conversation or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Conversation, error)

	// ListByOwner returns summaries for an owner ordered by most recent
	// activity descending, plus the owner's total conversation count.
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.ConversationSummary, int, error)

	// AppendTurn assigns the turn an id and timestamp and appends it. When
	// the appended turn is the first in the thread and has the user role,
	// the conversation title is derived from its content. Bumps updated-at.
	AppendTurn(ctx context.Context, id string, role model.Role, content string) (*model.Turn, error)

	// RemoveLastTurn pops the most recent turn. Used only to compensate a
	// failed completion; a no-op on an empty thread.
	RemoveLastTurn(ctx context.Context, id string) error

	// Rename replaces the title. Bumps updated-at.
	Rename(ctx context.Context, id, title string) (*model.Conversation, error)

	// Delete removes the conversation.
	Delete(ctx context.Context, id string) error
}

// LedgerStore persists one credit ledger record per owner.
type LedgerStore interface {
	// Get returns the owner's ledger or ErrNotFound.
	Get(ctx context.Context, ownerID string) (*model.CreditLedger, error)

	// Put upserts a ledger record.
	Put(ctx context.Context, ledger *model.CreditLedger) error

	// List returns every ledger record.
	List(ctx context.Context) ([]*model.CreditLedger, error)
}

// Backend bundles the two stores behind one coordinating boundary so a
// transactional implementation can replace the pair without touching the
// exchange state machine.
type Backend interface {
	Conversations() ConversationStore
	Ledgers() LedgerStore

	// Ping reports backend connectivity for readiness checks.
	Ping(ctx context.Context) error
}

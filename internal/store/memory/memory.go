// Package memory provides mutex-guarded in-memory implementations of the
// store contracts, used for tests and single-node deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/chatrelay/internal/model"
	"github.com/capitalize-ai/chatrelay/internal/store"
)

// Backend holds both in-memory stores.
type Backend struct {
	conversations *ConversationStore
	ledgers       *LedgerStore
}

// NewBackend creates an empty in-memory backend.
func NewBackend() *Backend {
	return &Backend{
		conversations: &ConversationStore{conversations: make(map[string]*model.Conversation)},
		ledgers:       &LedgerStore{ledgers: make(map[string]*model.CreditLedger)},
	}
}

func (b *Backend) Conversations() store.ConversationStore { return b.conversations }
func (b *Backend) Ledgers() store.LedgerStore             { return b.ledgers }
func (b *Backend) Ping(ctx context.Context) error         { return nil }

// ConversationStore keeps conversations in a map guarded by a RWMutex.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
}

func (s *ConversationStore) Create(ctx context.Context, ownerID, title string) (*model.Conversation, error) {
	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mu.Unlock()

	return cloneConversation(conv), nil
}

func (s *ConversationStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (s *ConversationStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.ConversationSummary, int, error) {
	// Clone while holding the lock; sorting and summarizing must not read
	// shared state racing with concurrent appends.
	s.mu.RLock()
	var owned []*model.Conversation
	for _, conv := range s.conversations {
		if conv.OwnerID == ownerID {
			owned = append(owned, cloneConversation(conv))
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		return owned[i].UpdatedAt.After(owned[j].UpdatedAt)
	})

	total := len(owned)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	summaries := make([]model.ConversationSummary, 0, end-start)
	for _, conv := range owned[start:end] {
		summaries = append(summaries, conv.Summary())
	}
	return summaries, total, nil
}

func (s *ConversationStore) AppendTurn(ctx context.Context, id string, role model.Role, content string) (*model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}

	now := time.Now()
	turn := model.Turn{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
	conv.Turns = append(conv.Turns, turn)
	if len(conv.Turns) == 1 && role == model.RoleUser {
		conv.Title = model.DeriveTitle(content)
	}
	conv.UpdatedAt = now

	out := turn
	return &out, nil
}

func (s *ConversationStore) RemoveLastTurn(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return store.ErrNotFound
	}
	if len(conv.Turns) == 0 {
		return nil
	}
	conv.Turns = conv.Turns[:len(conv.Turns)-1]
	conv.UpdatedAt = time.Now()
	return nil
}

func (s *ConversationStore) Rename(ctx context.Context, id, title string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	return cloneConversation(conv), nil
}

func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

// LedgerStore keeps credit ledgers in a map guarded by a RWMutex.
type LedgerStore struct {
	mu      sync.RWMutex
	ledgers map[string]*model.CreditLedger
}

func (s *LedgerStore) Get(ctx context.Context, ownerID string) (*model.CreditLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger, ok := s.ledgers[ownerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *ledger
	return &out, nil
}

func (s *LedgerStore) Put(ctx context.Context, ledger *model.CreditLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *ledger
	s.ledgers[ledger.OwnerID] = &stored
	return nil
}

func (s *LedgerStore) List(ctx context.Context) ([]*model.CreditLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.CreditLedger, 0, len(s.ledgers))
	for _, ledger := range s.ledgers {
		copied := *ledger
		out = append(out, &copied)
	}
	return out, nil
}

// cloneConversation returns a deep copy so callers cannot mutate stored
// state through returned values.
func cloneConversation(conv *model.Conversation) *model.Conversation {
	out := *conv
	out.Turns = make([]model.Turn, len(conv.Turns))
	copy(out.Turns, conv.Turns)
	return &out
}

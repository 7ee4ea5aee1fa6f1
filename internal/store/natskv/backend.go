package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/chatrelay/internal/model"
	"github.com/capitalize-ai/chatrelay/internal/store"
)

// Backend is the JetStream-backed store pair.
type Backend struct {
	conn          *nats.Conn
	conversations *ConversationStore
	ledgers       *LedgerStore
}

func (b *Backend) Conversations() store.ConversationStore { return b.conversations }
func (b *Backend) Ledgers() store.LedgerStore             { return b.ledgers }

// Ping reports whether the NATS connection is alive.
func (b *Backend) Ping(ctx context.Context) error {
	if b.conn == nil || !b.conn.IsConnected() {
		return errors.New("NATS not connected")
	}
	return nil
}

// Close closes the NATS connection.
func (b *Backend) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// ConversationStore persists one JSON document per conversation.
//
// Writes are read-modify-write on the whole document; requests against the
// same conversation are expected not to run concurrently, so last write
// wins and no revision check is made.
type ConversationStore struct {
	kv jetstream.KeyValue
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
	if err := s.put(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(entry.Value(), &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return &conv, nil
}

// ListByOwner scans the bucket and filters by owner. Fine for the bucket
// sizes this backend targets; an indexed engine slots in behind the same
// interface when that stops being true.
func (s *ConversationStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.ConversationSummary, int, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list conversation keys: %w", err)
	}

	var owned []*model.Conversation
	for key := range lister.Keys() {
		conv, err := s.Get(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, 0, err
		}
		if conv.OwnerID == ownerID {
			owned = append(owned, conv)
		}
	}

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
	conv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
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

	if err := s.put(ctx, conv); err != nil {
		return nil, err
	}
	return &turn, nil
}

func (s *ConversationStore) RemoveLastTurn(ctx context.Context, id string) error {
	conv, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if len(conv.Turns) == 0 {
		return nil
	}
	conv.Turns = conv.Turns[:len(conv.Turns)-1]
	conv.UpdatedAt = time.Now()
	return s.put(ctx, conv)
}

func (s *ConversationStore) Rename(ctx context.Context, id, title string) (*model.Conversation, error) {
	conv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	if err := s.put(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func (s *ConversationStore) put(ctx context.Context, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	if _, err := s.kv.Put(ctx, conv.ID, data); err != nil {
		return fmt.Errorf("failed to store conversation: %w", err)
	}
	return nil
}

// LedgerStore persists one JSON ledger document per owner.
type LedgerStore struct {
	kv jetstream.KeyValue
}

func (s *LedgerStore) Get(ctx context.Context, ownerID string) (*model.CreditLedger, error) {
	entry, err := s.kv.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}

	var ledger model.CreditLedger
	if err := json.Unmarshal(entry.Value(), &ledger); err != nil {
		return nil, fmt.Errorf("failed to decode ledger: %w", err)
	}
	return &ledger, nil
}

func (s *LedgerStore) Put(ctx context.Context, ledger *model.CreditLedger) error {
	data, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	if _, err := s.kv.Put(ctx, ledger.OwnerID, data); err != nil {
		return fmt.Errorf("failed to store ledger: %w", err)
	}
	return nil
}

func (s *LedgerStore) List(ctx context.Context) ([]*model.CreditLedger, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger keys: %w", err)
	}

	var out []*model.CreditLedger
	for key := range lister.Keys() {
		ledger, err := s.Get(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, ledger)
	}
	return out, nil
}

// Package service provides the business logic of the chat relay: the
// conversation lifecycle and the message exchange state machine.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatrelay/internal/apperr"
	"github.com/capitalize-ai/chatrelay/internal/model"
	"github.com/capitalize-ai/chatrelay/internal/store"
	"github.com/capitalize-ai/chatrelay/pkg/logger"
)

// ConversationService handles conversation CRUD with ownership
// enforcement. The store itself is ownership-blind; every operation here
// verifies the caller owns the conversation first.
type ConversationService struct {
	backend store.Backend
	logger  *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(backend store.Backend, log *logger.Logger) *ConversationService {
	return &ConversationService{backend: backend, logger: log}
}

// List returns the caller's conversation summaries, most recent activity
// first.
func (s *ConversationService) List(ctx context.Context, id model.Identity, page, limit int) (*model.ListConversationsResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	summaries, total, err := s.backend.Conversations().ListByOwner(ctx, id.UserID, limit, offset)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to list conversations: %w", err))
	}
	if summaries == nil {
		summaries = []model.ConversationSummary{}
	}

	return &model.ListConversationsResponse{
		Conversations: summaries,
		Page:          page,
		Limit:         limit,
		Total:         total,
	}, nil
}

// Get returns the full conversation after verifying ownership.
func (s *ConversationService) Get(ctx context.Context, id model.Identity, conversationID string) (*model.Conversation, error) {
	conv, err := s.backend.Conversations().Get(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("conversation not found")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to get conversation: %w", err))
	}
	if conv.OwnerID != id.UserID {
		return nil, apperr.Forbidden("access denied")
	}
	return conv, nil
}

// Rename replaces the conversation title after verifying ownership.
func (s *ConversationService) Rename(ctx context.Context, id model.Identity, conversationID, title string) (*model.Conversation, error) {
	if _, err := s.Get(ctx, id, conversationID); err != nil {
		return nil, err
	}

	conv, err := s.backend.Conversations().Rename(ctx, conversationID, title)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to rename conversation: %w", err))
	}
	return conv, nil
}

// Delete removes the conversation after verifying ownership.
func (s *ConversationService) Delete(ctx context.Context, id model.Identity, conversationID string) error {
	if _, err := s.Get(ctx, id, conversationID); err != nil {
		return err
	}

	if err := s.backend.Conversations().Delete(ctx, conversationID); err != nil {
		return apperr.Internal(fmt.Errorf("failed to delete conversation: %w", err))
	}

	s.logger.Info("conversation deleted",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", id.UserID),
	)
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatrelay/internal/apperr"
	"github.com/capitalize-ai/chatrelay/internal/ledger"
	"github.com/capitalize-ai/chatrelay/internal/llm"
	"github.com/capitalize-ai/chatrelay/internal/model"
	"github.com/capitalize-ai/chatrelay/internal/prompt"
	"github.com/capitalize-ai/chatrelay/internal/store"
	"github.com/capitalize-ai/chatrelay/pkg/logger"
	"github.com/capitalize-ai/chatrelay/pkg/metrics"
)

// EmitFunc receives streaming exchange events. A nil EmitFunc selects the
// synchronous path; a non-nil one the streaming path. A non-nil return
// (typically the caller's context error on disconnect) aborts the
// exchange through the compensation path.
type EmitFunc func(event model.StreamEvent) error

// ExchangeOptions configures prompt assembly and tier-dependent
// completion parameters.
type ExchangeOptions struct {
	SystemDirective   string
	PromptTokenBudget int
	FreeModel         string
	PremiumModel      string
	FreeMaxTokens     int
	PremiumMaxTokens  int
	Temperature       float32
}

// ExchangeResult is the outcome of a successful exchange.
type ExchangeResult struct {
	Conversation  *model.Conversation
	UserTurn      *model.Turn
	AssistantTurn *model.Turn
	Usage         model.TokenUsage
	Credits       model.CreditBalance
}

// ExchangeService runs the message exchange: validate, resolve the
// conversation, moderate, append the user turn, debit a credit, call the
// gateway, then commit the assistant turn or compensate.
type ExchangeService struct {
	backend store.Backend
	gateway llm.Gateway
	credits *ledger.Service
	opts    ExchangeOptions
	logger  *logger.Logger
}

// NewExchangeService creates a new exchange service.
func NewExchangeService(
	backend store.Backend,
	gateway llm.Gateway,
	credits *ledger.Service,
	opts ExchangeOptions,
	log *logger.Logger,
) *ExchangeService {
	return &ExchangeService{
		backend: backend,
		gateway: gateway,
		credits: credits,
		opts:    opts,
		logger:  log,
	}
}

// Exchange processes one user message end to end. Both transports share
// this path: the synchronous caller passes a nil emit and reads the
// result, the streaming caller passes an emitter and receives the
// conversation identity and each content fragment as events. The
// terminal complete/error event is the transport's responsibility.
func (s *ExchangeService) Exchange(ctx context.Context, id model.Identity, req *model.SendMessageRequest, emit EmitFunc) (*ExchangeResult, error) {
	// Validating: no side effects yet.
	if strings.TrimSpace(req.Message) == "" {
		return nil, apperr.Validation("message content is required")
	}

	conversations := s.backend.Conversations()

	// Resolving-Conversation: an existing id must resolve to a thread the
	// caller owns. Absence and foreign ownership both read as not-found so
	// the endpoint does not reveal which it was.
	var conv *model.Conversation
	if req.ConversationID != "" {
		existing, err := conversations.Get(ctx, req.ConversationID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("conversation not found")
		}
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("failed to resolve conversation: %w", err))
		}
		if existing.OwnerID != id.UserID {
			return nil, apperr.NotFound("conversation not found")
		}
		conv = existing
	}

	// Moderating: best effort, and before a missing conversation is
	// created so a flagged message leaves no persisted state at all.
	if rejected := s.moderate(ctx, id, req.Message); rejected != nil {
		return nil, rejected
	}

	if conv == nil {
		created, err := conversations.Create(ctx, id.UserID, model.DeriveTitle(req.Message))
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("failed to create conversation: %w", err))
		}
		conv = created
		metrics.ConversationsCreated.Inc()
	}

	// First durable side effect.
	userTurn, err := conversations.AppendTurn(ctx, conv.ID, model.RoleUser, req.Message)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to append user turn: %w", err))
	}

	// Debiting-Credit. An exhausted balance aborts here and leaves the
	// just-appended user turn in place; that asymmetry with the gateway
	// failure path mirrors the billing flow this service replaces and is
	// pending product review.
	metered := id.Tier != model.TierPremium
	remaining := 0
	if metered {
		remaining, err = s.credits.Debit(ctx, id.UserID, id.Tier)
		if err != nil {
			if appErr := apperr.As(err); appErr != nil {
				return nil, appErr
			}
			return nil, apperr.Internal(err)
		}
	}

	// Awaiting-Completion.
	full, err := conversations.Get(ctx, conv.ID)
	if err != nil {
		return nil, s.compensate(ctx, id, conv, metered, apperr.Internal(fmt.Errorf("failed to reload conversation: %w", err)))
	}
	conv = full

	entries := prompt.Truncate(
		prompt.Assemble(conv.Turns, s.opts.SystemDirective),
		s.opts.PromptTokenBudget,
	)

	completionReq := &llm.CompletionRequest{
		Model:       s.opts.FreeModel,
		Messages:    toGatewayMessages(entries),
		MaxTokens:   s.opts.FreeMaxTokens,
		Temperature: s.opts.Temperature,
	}
	if id.Tier == model.TierPremium {
		completionReq.Model = s.opts.PremiumModel
		completionReq.MaxTokens = s.opts.PremiumMaxTokens
	}

	if emit != nil {
		err = emit(model.StreamEvent{
			Type: model.EventConversation,
			Data: model.ConversationEventData{
				ConversationID: conv.ID,
				Title:          conv.Title,
				UserTurn:       *userTurn,
			},
		})
		if err != nil {
			return nil, s.compensate(ctx, id, conv, metered, apperr.Internal(err))
		}
	}

	var resp *llm.CompletionResponse
	if emit == nil {
		resp, err = s.gateway.Complete(ctx, completionReq)
	} else {
		resp, err = s.gateway.CompleteStream(ctx, completionReq, func(fragment string, index int) error {
			return emit(model.StreamEvent{
				Type: model.EventContent,
				Data: model.ContentEventData{Content: fragment},
			})
		})
	}
	if err != nil {
		s.logger.Error("completion failed",
			zap.String("conversation_id", conv.ID),
			zap.String("user_id", id.UserID),
			zap.Error(err),
		)
		return nil, s.compensate(ctx, id, conv, metered, apperr.Provider(err))
	}

	// Committing.
	assistantTurn, err := conversations.AppendTurn(ctx, conv.ID, model.RoleAssistant, resp.Content)
	if err != nil {
		return nil, s.compensate(ctx, id, conv, metered, apperr.Internal(fmt.Errorf("failed to append assistant turn: %w", err)))
	}

	usage := model.TokenUsage{
		PromptTokens:     resp.TokensIn,
		CompletionTokens: resp.TokensOut,
		TotalTokens:      resp.TokensIn + resp.TokensOut,
	}

	credits := model.UnlimitedBalance()
	if metered {
		credits = model.MeteredBalance(remaining)
	}

	metrics.ExchangesTotal.WithLabelValues("success").Inc()
	metrics.RecordCompletion(resp.Model, resp.TokensIn, resp.TokensOut, resp.LatencyMs)

	s.logger.Info("message exchange complete",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", id.UserID),
		zap.String("model", resp.Model),
		zap.Int("total_tokens", usage.TotalTokens),
	)

	return &ExchangeResult{
		Conversation:  conv,
		UserTurn:      userTurn,
		AssistantTurn: assistantTurn,
		Usage:         usage,
		Credits:       credits,
	}, nil
}

// moderate runs the advisory content check. Flagged content yields a
// rejection; a failing moderation service is logged and ignored.
func (s *ExchangeService) moderate(ctx context.Context, id model.Identity, message string) error {
	result, err := s.gateway.Moderate(ctx, message)
	if err != nil {
		if !errors.Is(err, llm.ErrModerationUnavailable) {
			s.logger.Warn("moderation check failed, proceeding",
				zap.String("user_id", id.UserID),
				zap.Error(err),
			)
		}
		return nil
	}
	if result.Flagged {
		metrics.ModerationFlagged.Inc()
		s.logger.Warn("content flagged by moderation",
			zap.String("user_id", id.UserID),
			zap.Strings("categories", result.Categories),
		)
		return apperr.ModerationRejected(result.Categories)
	}
	return nil
}

// compensate rolls back the user turn and, for metered owners, the
// debited credit, leaving conversation and ledger as they were before
// the message was accepted. Rollback failures are logged, not surfaced:
// the original failure is what the caller needs to see.
func (s *ExchangeService) compensate(ctx context.Context, id model.Identity, conv *model.Conversation, metered bool, cause error) error {
	if conv != nil {
		if err := s.backend.Conversations().RemoveLastTurn(ctx, conv.ID); err != nil {
			s.logger.Error("failed to roll back user turn",
				zap.String("conversation_id", conv.ID),
				zap.Error(err),
			)
		}
	}
	if metered {
		if err := s.credits.Refund(ctx, id.UserID, id.Tier); err != nil {
			s.logger.Error("failed to refund credit",
				zap.String("user_id", id.UserID),
				zap.Error(err),
			)
		}
	}
	metrics.ExchangesTotal.WithLabelValues("compensated").Inc()
	return cause
}

func toGatewayMessages(entries []prompt.Entry) []llm.Message {
	out := make([]llm.Message, len(entries))
	for i, entry := range entries {
		out[i] = llm.Message{Role: string(entry.Role), Content: entry.Content}
	}
	return out
}

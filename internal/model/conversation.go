// Package model defines data structures for the chat relay.
package model

import (
	"time"
)

// Role identifies the sender of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// titleMaxRunes caps the auto-derived conversation title length.
const titleMaxRunes = 50

// Turn is one message within a conversation. Stored turns are always
// user or assistant; system turns exist only inside an assembled prompt.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is an owned, ordered thread of turns. The owner is set at
// creation and never changes; slice order is the authoritative turn order.
type Conversation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationSummary is the list-view projection of a conversation.
// It never carries the full turn sequence.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	LastTurn  *Turn     `json:"last_turn,omitempty"`
	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary builds the list projection for a conversation.
func (c *Conversation) Summary() ConversationSummary {
	s := ConversationSummary{
		ID:        c.ID,
		Title:     c.Title,
		TurnCount: len(c.Turns),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if n := len(c.Turns); n > 0 {
		last := c.Turns[n-1]
		s.LastTurn = &last
	}
	return s
}

// DeriveTitle produces a conversation title from the first user message:
// the first 50 characters, with an ellipsis marker when truncated.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}

// Identity is the authenticated caller as supplied by the auth middleware.
// The relay trusts it without re-verifying credentials.
type Identity struct {
	UserID string
	Tier   Tier
}

// SendMessageRequest is the body of POST /chat/message and /chat/stream.
type SendMessageRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// RenameConversationRequest is the body of PUT /chat/conversations/{id}.
type RenameConversationRequest struct {
	Title string `json:"title"`
}

// TokenUsage is the provider-reported token accounting for one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ExchangeConversation is the conversation slice of an exchange response:
// identity plus the two turns produced by this request.
type ExchangeConversation struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Messages []Turn `json:"messages"`
}

// SendMessageResponse is the synchronous exchange response.
type SendMessageResponse struct {
	Conversation     ExchangeConversation `json:"conversation"`
	Usage            TokenUsage           `json:"usage"`
	CreditsRemaining CreditBalance        `json:"credits_remaining"`
}

// ListConversationsResponse is the paginated summary listing.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Page          int                   `json:"page"`
	Limit         int                   `json:"limit"`
	Total         int                   `json:"total"`
}

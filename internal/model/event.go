package model

// EventType tags a streaming exchange event.
type EventType string

const (
	// EventConversation identifies the conversation the stream belongs to.
	// Always the first event on the channel.
	EventConversation EventType = "conversation"
	// EventContent carries one incremental answer fragment.
	EventContent EventType = "content"
	// EventComplete is the success terminal event.
	EventComplete EventType = "complete"
	// EventError is the failure terminal event.
	EventError EventType = "error"
)

// StreamEvent is one event on the streaming exchange channel. Exactly one
// terminal event (complete or error) ends the stream.
type StreamEvent struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// ConversationEventData announces the resolved conversation and the
// committed user turn.
type ConversationEventData struct {
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
	UserTurn       Turn   `json:"user_message"`
}

// ContentEventData carries one answer fragment.
type ContentEventData struct {
	Content string `json:"content"`
}

// CompleteEventData carries the finalized assistant turn and the
// remaining credit count.
type CompleteEventData struct {
	AssistantTurn    Turn          `json:"assistant_message"`
	Usage            TokenUsage    `json:"usage"`
	CreditsRemaining CreditBalance `json:"credits_remaining"`
}

// ErrorEventData reports a terminal stream failure. CreditsRemaining is
// set for insufficient-credit failures, matching the synchronous error
// body.
type ErrorEventData struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	CreditsRemaining *int   `json:"credits_remaining,omitempty"`
}

// Package llm provides the completion gateway: the single boundary where
// provider-specific request and response shapes are translated. Nothing
// provider-specific leaks past this package.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// StreamCallback is invoked for each incremental answer fragment. A
// non-nil return aborts the stream without leaking the transport.
type StreamCallback func(fragment string, index int) error

// Message is one prompt entry in provider-neutral form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one completion call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// CompletionResponse carries the answer and provider-reported usage.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// ModerationResult is the outcome of a content check.
type ModerationResult struct {
	Flagged    bool
	Categories []string
}

// ErrModerationUnavailable is returned by gateways without a moderation
// endpoint. Callers treat the check as advisory and proceed.
var ErrModerationUnavailable = errors.New("moderation not supported by provider")

// Gateway is the interface for remote model providers.
type Gateway interface {
	// Complete sends a blocking completion request.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream sends a streaming completion request, invoking the
	// callback once per fragment. The returned response carries the full
	// accumulated content.
	CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error)

	// Moderate runs a pass/fail content check.
	Moderate(ctx context.Context, text string) (*ModerationResult, error)

	// Name returns the provider name.
	Name() string
}

// ErrorKind classifies provider failures by reported status.
type ErrorKind string

const (
	ErrUnauthorized  ErrorKind = "unauthorized"
	ErrRateLimited   ErrorKind = "rate_limited"
	ErrProviderFault ErrorKind = "provider_fault"
	ErrUnknown       ErrorKind = "unknown"
)

// ProviderError wraps a provider failure with its classified kind.
type ProviderError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%s): %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return ErrUnauthorized
	case status == 429:
		return ErrRateLimited
	case status >= 500:
		return ErrProviderFault
	default:
		return ErrUnknown
	}
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// NewGateway creates a gateway for the named provider.
func NewGateway(provider Provider, apiKey string) (Gateway, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicGateway(apiKey)
	case ProviderOpenAI:
		return NewOpenAIGateway(apiKey)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}

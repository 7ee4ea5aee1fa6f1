package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicGateway talks to the Anthropic API.
type AnthropicGateway struct {
	client *anthropic.Client
}

// NewAnthropicGateway creates an Anthropic gateway.
func NewAnthropicGateway(apiKey string) (*AnthropicGateway, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	return &AnthropicGateway{client: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

// Name returns the provider name.
func (g *AnthropicGateway) Name() string {
	return "anthropic"
}

// Complete sends a blocking completion request.
func (g *AnthropicGateway) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	params := toAnthropicParams(req)
	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapAnthropicError(err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}

	return &CompletionResponse{
		Content:    content,
		Model:      resp.Model,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// CompleteStream sends a streaming completion request.
func (g *AnthropicGateway) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	params := toAnthropicParams(req)
	stream := g.client.Messages.NewStreaming(ctx, params)

	var content, stopReason string
	var tokensIn, tokensOut int
	index := 0

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case anthropic.MessageStreamEventTypeMessageStart:
			tokensIn = int(event.Message.Usage.InputTokens)
		case anthropic.MessageStreamEventTypeContentBlockDelta:
			if delta, ok := event.Delta.(anthropic.ContentBlockDeltaEventDelta); ok && delta.Type == "text_delta" {
				fragment := delta.Text
				content += fragment
				if err := callback(fragment, index); err != nil {
					return nil, err
				}
				index++
			}
		case anthropic.MessageStreamEventTypeMessageDelta:
			if delta, ok := event.Delta.(anthropic.MessageDeltaEventDelta); ok {
				stopReason = string(delta.StopReason)
			}
			tokensOut = int(event.Usage.OutputTokens)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, wrapAnthropicError(err)
	}

	return &CompletionResponse{
		Content:    content,
		Model:      req.Model,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// Moderate reports unavailability; Anthropic exposes no moderation
// endpoint, so callers fall through to their advisory handling.
func (g *AnthropicGateway) Moderate(ctx context.Context, text string) (*ModerationResult, error) {
	return nil, ErrModerationUnavailable
}

// toAnthropicParams translates the neutral request. A leading system
// entry becomes the top-level system parameter.
func toAnthropicParams(req *CompletionRequest) anthropic.MessageNewParams {
	messages := req.Messages
	var system string
	if len(messages) > 0 && messages[0].Role == "system" {
		system = messages[0].Content
		messages = messages[1:]
	}

	converted := make([]anthropic.MessageParam, len(messages))
	for i, msg := range messages {
		converted[i] = anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				},
			}),
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.F(req.Model),
		MaxTokens:   anthropic.F(int64(req.MaxTokens)),
		Messages:    anthropic.F(converted),
		Temperature: anthropic.F(float64(req.Temperature)),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(system),
		}})
	}
	return params
}

func wrapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Kind:   classifyStatus(apiErr.StatusCode),
			Status: apiErr.StatusCode,
			Err:    err,
		}
	}
	return &ProviderError{Kind: ErrUnknown, Err: err}
}

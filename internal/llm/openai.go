package llm

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIGateway talks to the OpenAI API.
type OpenAIGateway struct {
	client *openai.Client
}

// NewOpenAIGateway creates an OpenAI gateway. The key is passed in
// explicitly so multiple configurations can coexist.
func NewOpenAIGateway(apiKey string) (*OpenAIGateway, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	return &OpenAIGateway{client: openai.NewClient(apiKey)}, nil
}

// Name returns the provider name.
func (g *OpenAIGateway) Name() string {
	return "openai"
}

// Complete sends a blocking completion request.
func (g *OpenAIGateway) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, wrapOpenAIError(err)
	}

	var content, stopReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		stopReason = string(resp.Choices[0].FinishReason)
	}

	return &CompletionResponse{
		Content:    content,
		Model:      resp.Model,
		TokensIn:   resp.Usage.PromptTokens,
		TokensOut:  resp.Usage.CompletionTokens,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// CompleteStream sends a streaming completion request.
func (g *OpenAIGateway) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	defer stream.Close()

	var content, stopReason string
	index := 0

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapOpenAIError(err)
		}

		if len(response.Choices) > 0 {
			delta := response.Choices[0].Delta.Content
			if delta != "" {
				content += delta
				if err := callback(delta, index); err != nil {
					return nil, err
				}
				index++
			}
			if response.Choices[0].FinishReason != "" {
				stopReason = string(response.Choices[0].FinishReason)
			}
		}
	}

	// The streaming API reports no token counts; estimate from length.
	promptLen := 0
	for _, msg := range req.Messages {
		promptLen += len(msg.Content)
	}

	return &CompletionResponse{
		Content:    content,
		Model:      req.Model,
		TokensIn:   promptLen / 4,
		TokensOut:  len(content) / 4,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// Moderate runs the OpenAI moderation endpoint.
func (g *OpenAIGateway) Moderate(ctx context.Context, text string) (*ModerationResult, error) {
	resp, err := g.client.Moderations(ctx, openai.ModerationRequest{Input: text})
	if err != nil {
		return nil, wrapOpenAIError(err)
	}
	if len(resp.Results) == 0 {
		return &ModerationResult{}, nil
	}

	result := resp.Results[0]
	return &ModerationResult{
		Flagged:    result.Flagged,
		Categories: flaggedCategories(result.Categories),
	}, nil
}

func flaggedCategories(c openai.ResultCategories) []string {
	var out []string
	for name, flagged := range map[string]bool{
		"hate":                   c.Hate,
		"hate/threatening":       c.HateThreatening,
		"harassment":             c.Harassment,
		"harassment/threatening": c.HarassmentThreatening,
		"self-harm":              c.SelfHarm,
		"self-harm/intent":       c.SelfHarmIntent,
		"self-harm/instructions": c.SelfHarmInstructions,
		"sexual":                 c.Sexual,
		"sexual/minors":          c.SexualMinors,
		"violence":               c.Violence,
		"violence/graphic":       c.ViolenceGraphic,
	} {
		if flagged {
			out = append(out, name)
		}
	}
	return out
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return out
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Kind:   classifyStatus(apiErr.HTTPStatusCode),
			Status: apiErr.HTTPStatusCode,
			Err:    err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{
			Kind:   classifyStatus(reqErr.HTTPStatusCode),
			Status: reqErr.HTTPStatusCode,
			Err:    err,
		}
	}
	return &ProviderError{Kind: ErrUnknown, Err: err}
}

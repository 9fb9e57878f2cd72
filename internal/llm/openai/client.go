package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"policy-backend/internal/llm"
)

const defaultModel = "gpt-4o-mini"

// Client implements llm.Client using OpenAI Chat Completions via
// github.com/sashabaranov/go-openai.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &Client{
		api:   openai.NewClient(apiKey),
		model: model,
	}, nil
}

// AnalyzePolicy runs the per-chunk extraction prompt, retrying once through
// the fix-JSON pass when the model returns malformed output.
func (c *Client) AnalyzePolicy(ctx context.Context, input llm.AnalyzeInput) (json.RawMessage, error) {
	if rawFix, ok := llm.FixJSONFromContext(ctx); ok {
		return c.completeJSON(ctx, llm.BuildFixJSONMessages(rawFix))
	}

	raw, err := c.completeJSON(ctx, llm.BuildAnalyzeMessages(input))
	if err != nil {
		return nil, err
	}
	if json.Valid(raw) {
		return raw, nil
	}

	log.Printf("llm fix-json pass model=%s prompt_version=%s", c.model, input.PromptVersion)
	raw, err = c.completeJSON(ctx, llm.BuildFixJSONMessages(string(raw)))
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON from openai")
	}
	return raw, nil
}

// ClassifyFeatures runs the fallback categorization prompt.
func (c *Client) ClassifyFeatures(ctx context.Context, input llm.ClassifyInput) (json.RawMessage, error) {
	raw, err := c.completeJSON(ctx, llm.BuildClassifyMessages(input))
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		raw, err = c.completeJSON(ctx, llm.BuildFixJSONMessages(string(raw)))
		if err != nil {
			return nil, err
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("invalid JSON from openai")
		}
	}
	return raw, nil
}

func (c *Client) completeJSON(ctx context.Context, messages []llm.Message) (json.RawMessage, error) {
	reqMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    reqMessages,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai response missing choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, fmt.Errorf("openai response empty content")
	}
	logUsage(c.model, resp.Usage)
	return json.RawMessage(content), nil
}

func wrapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.UpstreamError{
			Provider:   "openai",
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
		}
	}
	return err
}

func logUsage(model string, usage openai.Usage) {
	log.Printf("llm response provider=openai model=%s prompt_tokens=%d completion_tokens=%d total_tokens=%d",
		model, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
}

var _ llm.Client = (*Client)(nil)

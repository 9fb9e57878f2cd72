package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Client abstracts LLM providers for policy analysis.
type Client interface {
	// AnalyzePolicy extracts policy info and features from one chunk of
	// policy text, returning the provider's raw JSON payload.
	AnalyzePolicy(ctx context.Context, input AnalyzeInput) (json.RawMessage, error)
	// ClassifyFeatures categorizes features the deterministic rules could
	// not decide.
	ClassifyFeatures(ctx context.Context, input ClassifyInput) (json.RawMessage, error)
}

// AnalyzeInput captures the inputs for per-chunk feature extraction.
type AnalyzeInput struct {
	PolicyText    string
	ChunkIndex    int
	ChunkCount    int
	PromptVersion string
}

// ClassifyInput captures the features needing LLM categorization.
type ClassifyInput struct {
	Features      []ClassifyFeature
	PromptVersion string
}

// ClassifyFeature is one feature sent to the fallback classifier.
type ClassifyFeature struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
	Quote string `json:"quote"`
}

type fixJSONKey struct{}

// WithFixJSON returns a context signaling a fix-JSON retry with the given raw output.
func WithFixJSON(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, fixJSONKey{}, raw)
}

// FixJSONFromContext returns the raw JSON to repair, if any.
func FixJSONFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(fixJSONKey{})
	raw, ok := val.(string)
	return raw, ok
}

// UpstreamError reports a failed HTTP exchange with the provider. StatusCode
// drives retry decisions: 4xx aborts, everything else is retryable.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error status=%d: %s", e.Provider, e.StatusCode, e.Message)
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("llm client not configured")

// PlaceholderClient is a stub implementation used when no provider is wired.
type PlaceholderClient struct{}

func (PlaceholderClient) AnalyzePolicy(ctx context.Context, input AnalyzeInput) (json.RawMessage, error) {
	_ = ctx
	_ = input
	return nil, ErrNotConfigured
}

func (PlaceholderClient) ClassifyFeatures(ctx context.Context, input ClassifyInput) (json.RawMessage, error) {
	_ = ctx
	_ = input
	return nil, ErrNotConfigured
}

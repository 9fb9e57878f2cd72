package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"strings"
	"time"

	"policy-backend/internal/llm"
	"policy-backend/internal/shared/metrics"
)

const (
	llmRetryBaseDelay = 300 * time.Millisecond
	llmRetryAttempts  = 3
)

type retryingLLM struct {
	base       llm.Client
	requestID  string
	analysisID string
}

// newRetryingLLM wraps a client with exponential-backoff retries. Upstream
// 4xx responses abort immediately; they will not improve on retry.
func newRetryingLLM(base llm.Client, analysisID, requestID string) llm.Client {
	if base == nil {
		return nil
	}
	return retryingLLM{
		base:       base,
		requestID:  requestID,
		analysisID: analysisID,
	}
}

func (r retryingLLM) AnalyzePolicy(ctx context.Context, input llm.AnalyzeInput) (json.RawMessage, error) {
	return r.withRetry(ctx, "analyze", func() (json.RawMessage, error) {
		return r.base.AnalyzePolicy(ctx, input)
	})
}

func (r retryingLLM) ClassifyFeatures(ctx context.Context, input llm.ClassifyInput) (json.RawMessage, error) {
	return r.withRetry(ctx, "classify", func() (json.RawMessage, error) {
		return r.base.ClassifyFeatures(ctx, input)
	})
}

func (r retryingLLM) withRetry(ctx context.Context, op string, call func() (json.RawMessage, error)) (json.RawMessage, error) {
	var lastErr error
	delay := llmRetryBaseDelay
	for attempt := 1; attempt <= llmRetryAttempts; attempt++ {
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !shouldRetryLLM(err) || attempt == llmRetryAttempts {
			return nil, err
		}
		metrics.IncLLMRetry()
		log.Printf("llm retry op=%s attempt=%d request_id=%s analysis_id=%s error=%s",
			op, attempt, r.requestID, r.analysisID, sanitizeError(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return nil, lastErr
}

func shouldRetryLLM(err error) bool {
	if err == nil {
		return false
	}
	var upstream *llm.UpstreamError
	if errors.As(err, &upstream) {
		// Auth and validation failures are final.
		if upstream.StatusCode >= 400 && upstream.StatusCode < 500 && upstream.StatusCode != 429 {
			return false
		}
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "client.timeout") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}

package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"policy-backend/internal/llm"
)

const (
	apiBaseURL   = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel = "gemini-1.5-flash"
)

// Client implements llm.Client using the Gemini generateContent API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new Gemini client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("GEMINI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: apiBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float32 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// AnalyzePolicy runs the per-chunk extraction prompt.
func (c *Client) AnalyzePolicy(ctx context.Context, input llm.AnalyzeInput) (json.RawMessage, error) {
	if rawFix, ok := llm.FixJSONFromContext(ctx); ok {
		return c.generateJSON(ctx, llm.BuildFixJSONMessages(rawFix))
	}

	raw, err := c.generateJSON(ctx, llm.BuildAnalyzeMessages(input))
	if err != nil {
		return nil, err
	}
	if json.Valid(raw) {
		return raw, nil
	}

	log.Printf("llm fix-json pass model=%s prompt_version=%s", c.model, input.PromptVersion)
	raw, err = c.generateJSON(ctx, llm.BuildFixJSONMessages(string(raw)))
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON from gemini")
	}
	return raw, nil
}

// ClassifyFeatures runs the fallback categorization prompt.
func (c *Client) ClassifyFeatures(ctx context.Context, input llm.ClassifyInput) (json.RawMessage, error) {
	raw, err := c.generateJSON(ctx, llm.BuildClassifyMessages(input))
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		raw, err = c.generateJSON(ctx, llm.BuildFixJSONMessages(string(raw)))
		if err != nil {
			return nil, err
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("invalid JSON from gemini")
		}
	}
	return raw, nil
}

func (c *Client) generateJSON(ctx context.Context, messages []llm.Message) (json.RawMessage, error) {
	reqBody := generateRequest{
		GenerationConfig: generationConfig{
			Temperature:      0,
			ResponseMimeType: "application/json",
		},
	}
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			reqBody.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
			continue
		}
		reqBody.Contents = append(reqBody.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("gemini request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("gemini response parse: %w", err)
	}
	if parsed.Error != nil {
		return nil, &llm.UpstreamError{
			Provider:   "gemini",
			StatusCode: parsed.Error.Code,
			Message:    parsed.Error.Message,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &llm.UpstreamError{
			Provider:   "gemini",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini response missing candidates")
	}

	text := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return nil, fmt.Errorf("gemini response empty content")
	}
	log.Printf("llm response provider=gemini model=%s bytes=%d", c.model, len(text))
	return json.RawMessage(text), nil
}

var _ llm.Client = (*Client)(nil)

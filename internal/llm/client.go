// Package llm wraps the OpenRouter chat-completions API behind a small
// Client interface. All transport, status and parse failures surface as
// plain errors so the intent classifier can route them to its fallback.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/quickgig/backend/internal/circuitbreaker"
	"github.com/quickgig/backend/internal/metrics"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "openai/gpt-4o-mini"
	defaultTimeout = 20 * time.Second
)

// Client is the text-generation collaborator consumed by the classifier.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionRequest describes one completion call.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	JSONOnly    bool // request a JSON-object response format
}

// Config holds the OpenRouter connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ConfigFromEnv builds a Config from OPENROUTER_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		APIKey:  os.Getenv("OPENROUTER_API_KEY"),
		BaseURL: os.Getenv("OPENROUTER_BASE_URL"),
		Model:   os.Getenv("OPENROUTER_MODEL"),
	}
}

// OpenRouterClient calls an OpenRouter-compatible chat-completions endpoint.
// Calls run through a circuit breaker so a dead upstream fails fast; an open
// circuit is just another upstream error as far as callers are concerned.
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	metrics    *metrics.Metrics
}

// NewOpenRouterClient creates an OpenRouter client from the given config.
func NewOpenRouterClient(cfg Config, m *metrics.Metrics) (*OpenRouterClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("OPENROUTER_API_KEY must be set")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &OpenRouterClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("openrouter")),
		metrics: m,
	}, nil
}

// Complete sends one chat completion and returns the raw message content.
func (c *OpenRouterClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	start := time.Now()
	result, err := c.breaker.ExecuteContext(ctx, func(ctx context.Context) (interface{}, error) {
		return c.complete(ctx, req)
	})
	c.metrics.RecordLLMCall(time.Since(start).Seconds(), err == nil)
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (c *OpenRouterClient) complete(ctx context.Context, req CompletionRequest) (string, error) {
	payload, err := c.buildPayload(req)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("completion response has no choices")
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("completion response content is empty")
	}
	return content, nil
}

func (c *OpenRouterClient) buildPayload(req CompletionRequest) ([]byte, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	messages := []message{
		{Role: "system", Content: req.System},
		{Role: "user", Content: req.User},
	}

	body := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.JSONOnly {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completion payload: %w", err)
	}
	return encoded, nil
}

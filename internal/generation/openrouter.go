package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenRouterConfig holds connection parameters for an OpenRouter-compatible
// chat-completions endpoint.
type OpenRouterConfig struct {
	// BaseURL is the API root (default: https://openrouter.ai/api/v1).
	BaseURL string

	// APIKey is the bearer token.
	APIKey string

	// Model is the model identifier, e.g. "deepseek/deepseek-chat".
	Model string

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// Temperature controls response randomness.
	Temperature float32

	// Referer and Title are optional attribution headers OpenRouter uses
	// for ranking (HTTP-Referer and X-Title).
	Referer string
	Title   string

	// Timeout bounds a single completion request (default: 120s).
	Timeout time.Duration
}

// OpenRouterClient implements Generator over the OpenRouter HTTP API. Any
// OpenAI-compatible chat-completions server works with a suitable BaseURL.
type OpenRouterClient struct {
	cfg    OpenRouterConfig
	client *http.Client
}

// NewOpenRouterClient builds a client with defaults filled in.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek/deepseek-chat"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &OpenRouterClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate posts one chat completion and extracts the first choice.
func (c *OpenRouterClient) Generate(ctx context.Context, system, user string) (Result, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return Result{}, fmt.Errorf("generation: encode request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("generation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("generation: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("generation: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("generation: API returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, fmt.Errorf("generation: %w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("generation: %w: no choices", ErrMalformedResponse)
	}

	return Result{
		Text:   parsed.Choices[0].Message.Content,
		Tokens: parsed.Usage.TotalTokens,
	}, nil
}

// Model returns the provider-qualified model identifier.
func (c *OpenRouterClient) Model() string {
	return "openrouter/" + c.cfg.Model
}

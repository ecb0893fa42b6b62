// Package generation produces answer text from a grounded prompt. It wraps
// several LLM backends behind one small interface: an OpenRouter-compatible
// HTTP client and the eino ChatModel providers (OpenAI, Azure OpenAI, Ollama,
// Gemini). A nil Generator means mock mode — the caller synthesizes a canned
// answer instead of calling a model.
package generation

import (
	"context"
	"errors"
)

// ErrMalformedResponse indicates the model endpoint answered 2xx but the body
// did not contain a usable completion.
var ErrMalformedResponse = errors.New("unexpected response format from API")

// Result is a single completed generation.
type Result struct {
	// Text is the generated answer.
	Text string

	// Tokens is the total token usage reported by the provider, or 0 when
	// the provider does not report usage.
	Tokens int
}

// Generator produces a completion from a system prompt and a user prompt.
// Implementations must be safe for concurrent use.
type Generator interface {
	// Generate runs one completion. Transport and provider failures are
	// returned as errors; ErrMalformedResponse covers a 2xx reply with an
	// unusable body.
	Generate(ctx context.Context, system, user string) (Result, error)

	// Model returns the provider-qualified model identifier, e.g.
	// "openrouter/deepseek/deepseek-chat".
	Model() string
}

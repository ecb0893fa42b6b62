package generation

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoGenerator adapts an eino ChatModel (OpenAI, Azure OpenAI, Ollama,
// Gemini) to the Generator interface.
type EinoGenerator struct {
	chat  model.BaseChatModel
	label string
}

// NewEinoGenerator wraps a constructed ChatModel. label is the
// provider-qualified model identifier reported by Model().
func NewEinoGenerator(chat model.BaseChatModel, label string) *EinoGenerator {
	return &EinoGenerator{chat: chat, label: label}
}

// Generate runs one completion through the wrapped ChatModel.
func (g *EinoGenerator) Generate(ctx context.Context, system, user string) (Result, error) {
	msg, err := g.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		return Result{}, fmt.Errorf("generation: model call failed: %w", err)
	}
	if msg == nil || msg.Content == "" {
		return Result{}, fmt.Errorf("generation: %w: empty completion", ErrMalformedResponse)
	}

	res := Result{Text: msg.Content}
	if meta := msg.ResponseMeta; meta != nil && meta.Usage != nil {
		res.Tokens = meta.Usage.TotalTokens
	}
	return res, nil
}

// Model returns the provider-qualified model identifier.
func (g *EinoGenerator) Model() string { return g.label }

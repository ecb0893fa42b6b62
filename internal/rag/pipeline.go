package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/54b3r/ragserve-go/internal/budget"
	"github.com/54b3r/ragserve-go/internal/embedder"
	"github.com/54b3r/ragserve-go/internal/generation"
	"github.com/54b3r/ragserve-go/internal/logging"
	"github.com/54b3r/ragserve-go/internal/vectorstore"
)

// DocumentInput is a document to be embedded and stored.
type DocumentInput struct {
	// Text is the passage to store.
	Text string

	// Metadata holds optional caller-supplied key-value pairs.
	Metadata map[string]any
}

// Pipeline wires the embedding generator, the vector store, and the answer
// generator into one question-answering unit. A nil generator selects mock
// mode: answers are synthesized locally and labeled as simulated.
type Pipeline struct {
	embedder  *embedder.Generator
	store     vectorstore.Store
	generator generation.Generator
}

// NewPipeline assembles a Pipeline from its collaborators. generator may be
// nil for mock mode.
func NewPipeline(emb *embedder.Generator, store vectorstore.Store, gen generation.Generator) *Pipeline {
	return &Pipeline{embedder: emb, store: store, generator: gen}
}

// ModelUsed returns the identifier reported in answers: the generator's
// model, or "mock" when none is configured.
func (p *Pipeline) ModelUsed() string {
	if p.generator == nil {
		return "mock"
	}
	return p.generator.Model()
}

// AnswerQuestion runs the full question-answering flow and always returns a
// well-formed Answer. Failures at any stage are folded into the answer text
// with zeroed numeric fields; no error or panic ever reaches the caller.
func (p *Pipeline) AnswerQuestion(ctx context.Context, question string, maxResults int) (ans Answer) {
	log := logging.FromContext(ctx)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("answer pipeline panicked", "panic", r)
			ans = p.errorAnswer(fmt.Sprintf("Failed to generate answer: %v", r))
		}
	}()

	if strings.TrimSpace(question) == "" {
		return p.errorAnswer("Question cannot be empty")
	}

	vecs, err := p.embedder.Embed(ctx, []string{question})
	if err != nil {
		log.Error("question embedding failed", "error", err)
		return p.errorAnswer(fmt.Sprintf("Failed to generate answer: %v", err))
	}

	hits, err := p.store.Search(ctx, vecs[0], maxResults)
	if err != nil {
		log.Error("context retrieval failed", "error", err)
		return p.errorAnswer(fmt.Sprintf("Failed to generate answer: %v", err))
	}

	contextDocs := make([]string, len(hits))
	for i, h := range hits {
		contextDocs[i] = h.Text
	}

	var answer string
	var tokens int
	if p.generator == nil {
		answer = mockAnswer(question, len(hits))
	} else {
		answer, tokens = p.generate(ctx, question, contextDocs)
	}

	log.Info("question answered",
		"context_documents", len(hits),
		"tokens_used", tokens,
		"mock_mode", p.generator == nil)

	return Answer{
		Answer:                answer,
		Sources:               formatSources(hits),
		ModelUsed:             p.ModelUsed(),
		TokensUsed:            tokens,
		ProcessingTime:        round2(time.Since(start).Seconds()),
		ContextDocumentsFound: len(hits),
	}
}

// generate calls the live backend. External failures degrade to an error
// string inside the answer — the request still succeeds end to end.
func (p *Pipeline) generate(ctx context.Context, question string, contextDocs []string) (string, int) {
	log := logging.FromContext(ctx)

	reserved := budget.Estimate(systemPrompt) + budget.Estimate(question)
	trimmed := budget.TrimContext(contextDocs, reserved, budget.DefaultMaxContextTokens)
	if len(trimmed) < len(contextDocs) {
		log.Warn("context trimmed to fit token budget",
			"retrieved", len(contextDocs),
			"sent", len(trimmed))
	}

	res, err := p.generator.Generate(ctx, systemPrompt, buildUserPrompt(question, trimmed))
	if err != nil {
		log.Error("generation call failed", "error", err, "model", p.generator.Model())
		if errors.Is(err, generation.ErrMalformedResponse) {
			return "Error: Unexpected response format from API", 0
		}
		return fmt.Sprintf("API Error: %v", err), 0
	}
	return res.Text, res.Tokens
}

// AddDocument validates, embeds, and stores a single document, returning its
// content-derived id.
func (p *Pipeline) AddDocument(ctx context.Context, text string, metadata map[string]any, allowDuplicates bool) (string, error) {
	if err := validateText(text); err != nil {
		return "", err
	}

	vecs, err := p.embedder.Embed(ctx, []string{text})
	if err != nil {
		return "", err
	}

	return p.store.Add(ctx, vectorstore.Document{
		Text:      text,
		Embedding: vecs[0],
		Metadata:  metadata,
	}, allowDuplicates)
}

// BulkAdd embeds and stores a batch in one embedding call. The returned ids
// cover only the documents actually inserted; duplicates are omitted.
func (p *Pipeline) BulkAdd(ctx context.Context, docs []DocumentInput, allowDuplicates bool) ([]string, error) {
	if len(docs) == 0 {
		return []string{}, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		if err := validateText(d.Text); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		texts[i] = d.Text
	}

	vecs, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	stored := make([]vectorstore.Document, len(docs))
	for i, d := range docs {
		stored[i] = vectorstore.Document{Text: d.Text, Embedding: vecs[i], Metadata: d.Metadata}
	}
	return p.store.BulkAdd(ctx, stored, allowDuplicates)
}

// Search embeds the query text and returns similarity-scored results.
func (p *Pipeline) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("rag: %w: query cannot be empty", ErrInvalidInput)
	}

	vecs, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	hits, err := p.store.Search(ctx, vecs[0], limit)
	if err != nil {
		return nil, err
	}
	return formatSources(hits), nil
}

// UpdateDocument applies a partial update. A text change re-embeds the
// document so its vector stays consistent with its content. Returns
// (false, nil) for unknown ids.
func (p *Pipeline) UpdateDocument(ctx context.Context, id string, text *string, metadata map[string]any) (bool, error) {
	upd := vectorstore.Update{Metadata: metadata}
	if text != nil {
		if err := validateText(*text); err != nil {
			return false, err
		}
		vecs, err := p.embedder.Embed(ctx, []string{*text})
		if err != nil {
			return false, err
		}
		upd.Text = text
		upd.Embedding = vecs[0]
	}
	return p.store.Update(ctx, id, upd)
}

// DeleteDocument removes a document. Returns (false, nil) for unknown ids.
func (p *Pipeline) DeleteDocument(ctx context.Context, id string) (bool, error) {
	return p.store.Delete(ctx, id)
}

// GetDocument returns a stored document, or nil when absent.
func (p *Pipeline) GetDocument(ctx context.Context, id string) (*vectorstore.Document, error) {
	return p.store.Get(ctx, id)
}

// Stats reports collection statistics. Never fails.
func (p *Pipeline) Stats(ctx context.Context) vectorstore.Stats {
	return p.store.Stats(ctx)
}

// errorAnswer builds the standardized error Answer shape.
func (p *Pipeline) errorAnswer(msg string) Answer {
	return Answer{
		Answer:    "Error: " + msg,
		Sources:   []SearchResult{},
		ModelUsed: p.ModelUsed(),
	}
}

// validateText enforces the document text preconditions.
func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("rag: %w: text cannot be empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > MaxDocumentLength {
		return fmt.Errorf("rag: %w: text exceeds %d characters", ErrInvalidInput, MaxDocumentLength)
	}
	return nil
}

// formatSources converts store hits into similarity-scored results. The
// store is distance-native; similarity is max(0, 1 − d/2), which maps unit
// vectors onto [0, 1] with 1 as an exact match.
func formatSources(hits []vectorstore.Result) []SearchResult {
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{
			Content:  h.Text,
			Score:    round3(math.Max(0, 1-h.Distance/2)),
			Metadata: h.Metadata,
			ID:       h.ID,
		}
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

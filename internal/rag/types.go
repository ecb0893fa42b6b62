// Package rag orchestrates question answering: it embeds the question,
// retrieves similar documents from the vector store, builds a grounded
// prompt, and produces an answer with similarity-scored sources. It also
// fronts the document CRUD operations so callers deal with text and
// metadata, never with raw vectors.
package rag

import "errors"

// ErrInvalidInput indicates caller-supplied data violated a precondition
// (empty text, oversized document, bad limit). Surfaced immediately, no retry.
var ErrInvalidInput = errors.New("invalid input")

// MaxDocumentLength is the maximum accepted document size in characters.
const MaxDocumentLength = 50000

// SearchResult is one similarity-scored hit returned to callers.
type SearchResult struct {
	// Content is the matched document's text.
	Content string `json:"content"`

	// Score is the similarity in [0, 1], derived from the store's distance
	// as max(0, 1 − d/2) and rounded to three decimals. 1 is an exact
	// match; 0 means unrelated or opposite.
	Score float64 `json:"score"`

	// Metadata is the document's metadata at query time.
	Metadata map[string]any `json:"metadata"`

	// ID is the matched document's identifier.
	ID string `json:"id,omitempty"`
}

// Answer is the assembled response to a question. The pipeline always
// returns a well-formed Answer; failures are encoded in the Answer text
// with zeroed numeric fields, never raised to the caller.
type Answer struct {
	// Answer is the generated (or error/mock) answer text.
	Answer string `json:"answer"`

	// Sources are the context documents actually offered to the model,
	// similarity-scored, in retrieval order. Empty on error.
	Sources []SearchResult `json:"sources"`

	// ModelUsed is the provider-qualified model identifier, or "mock" when
	// no generation backend is configured.
	ModelUsed string `json:"model_used"`

	// TokensUsed is the total token usage reported by the provider. Zero in
	// mock mode and on any error.
	TokensUsed int `json:"tokens_used"`

	// ProcessingTime is the end-to-end duration in seconds, rounded to two
	// decimals. Zero on validation failure.
	ProcessingTime float64 `json:"processing_time"`

	// ContextDocumentsFound is the number of documents retrieved for the
	// question, even when zero.
	ContextDocumentsFound int `json:"context_documents_found"`
}

// Package embedder converts text into fixed-length dense vector embeddings
// for similarity search. Two kinds of backend are available: HTTP-based
// sentence-embedding models (Ollama, OpenAI, Azure OpenAI — plain net/http,
// no SDK dependencies) and a deterministic SHA-256 hash backend that needs no
// external service at all.
//
// The Generator wraps whichever backend was selected at construction and owns
// the batch contract: output is always parallel to input, whitespace-only
// inputs map to the zero vector, and an empty batch returns an empty result.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultDimensions is the vector size of the hash backend when no explicit
// dimension override is configured. It matches the output of the
// all-MiniLM-L6-v2 class of sentence-embedding models.
const DefaultDimensions = 384

// ErrGenerationFailed wraps internal backend errors during embedding
// generation (e.g. the model endpoint returning a malformed response).
var ErrGenerationFailed = errors.New("embedding generation failed")

// Backend produces raw embeddings for a batch of non-empty texts.
// The returned slice must be parallel to the input slice.
// Implementations must be safe to call from multiple goroutines.
type Backend interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns a short label identifying the backend (e.g.
	// "ollama/nomic-embed-text", "hash-sha256").
	Name() string
}

// Generator is the embedding front door used by the rest of the system.
// It is constructed once at process start (see New) and never fails to
// construct: if the configured model backend is unreachable the Generator
// silently carries the deterministic hash backend instead.
type Generator struct {
	// backend is the active embedding backend, selected at construction.
	backend Backend

	// dims is the vector dimension produced by the active backend.
	// For model backends it is discovered with a trial embedding.
	dims int

	// fallback is true when the deterministic hash backend is active.
	fallback bool
}

// Dimensions returns the vector size produced by this Generator.
// Every non-error result of Embed has exactly this many elements per vector.
func (g *Generator) Dimensions() int { return g.dims }

// ModelName returns the label of the active backend.
func (g *Generator) ModelName() string { return g.backend.Name() }

// Fallback reports whether the deterministic hash backend is active.
func (g *Generator) Fallback() bool { return g.fallback }

// Embed converts a batch of texts into embeddings. The result is always
// parallel to the input: whitespace-only texts yield a zero vector of the
// Generator's dimension rather than being dropped. An empty input yields an
// empty (non-nil) result without touching the backend.
//
// Backend failures are wrapped as [ErrGenerationFailed].
func (g *Generator) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	var batch []string
	var batchIdx []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, g.dims)
			continue
		}
		batch = append(batch, t)
		batchIdx = append(batchIdx, i)
	}

	if len(batch) == 0 {
		return out, nil
	}

	vecs, err := g.backend.Embed(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w: %v", ErrGenerationFailed, err)
	}
	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("embedder: %w: backend returned %d vectors for %d texts",
			ErrGenerationFailed, len(vecs), len(batch))
	}

	for j, v := range vecs {
		if len(v) != g.dims {
			return nil, fmt.Errorf("embedder: %w: backend returned dimension %d, want %d",
				ErrGenerationFailed, len(v), g.dims)
		}
		out[batchIdx[j]] = v
	}

	return out, nil
}

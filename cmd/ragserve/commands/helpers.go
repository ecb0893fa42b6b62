package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/ragserve-go/internal/embedder"
	"github.com/54b3r/ragserve-go/internal/generation"
	"github.com/54b3r/ragserve-go/internal/rag"
	"github.com/54b3r/ragserve-go/internal/vectorstore"
)

// buildPipeline wires the embedder, vector store, and generator from the
// environment into a ready RAG pipeline. The returned cleanup function closes
// the vector store and must be called before process exit.
//
// The embedder and store are also returned directly so callers can attach
// readiness probes or report backend details.
func buildPipeline(ctx context.Context, log *slog.Logger) (*rag.Pipeline, *embedder.Generator, vectorstore.Store, func(), error) {
	emb := embedder.New(ctx, embedder.ConfigFromEnv(), log)

	store, err := vectorstore.New(ctx, vectorstore.ConfigFromEnv(), log)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("initialise vector store: %w", err)
	}

	gen, err := generation.New(ctx, generation.ConfigFromEnv(), log)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, nil, fmt.Errorf("initialise generation provider: %w", err)
	}

	pipeline := rag.NewPipeline(emb, store, gen)

	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn("vector store close failed", slog.Any("error", err))
		}
	}
	return pipeline, emb, store, cleanup, nil
}

// parseMetadata converts repeated key=value flag entries into a metadata map.
// Values that parse as JSON (numbers, booleans, arrays, objects) keep their
// type; everything else is stored as a string.
func parseMetadata(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid metadata %q: expected key=value", pair)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			meta[key] = parsed
		} else {
			meta[key] = value
		}
	}
	return meta, nil
}

// getEnvOrDefault returns the env var value or fallback if unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback if unset or invalid.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvFloat returns the env var parsed as float64, or fallback if unset or invalid.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
)

// Config holds the embedding backend settings resolved from the environment
// or supplied explicitly by the caller.
type Config struct {
	// Provider selects the backend: ollama, openai, azure, or hash.
	// "hash" skips the model path entirely and uses the deterministic backend.
	Provider string

	// Model is the embedding model name for the selected provider.
	Model string

	// Endpoint overrides the provider's default API endpoint.
	Endpoint string

	// APIKey is the credential for openai/azure backends.
	APIKey string

	// APIVersion is the Azure OpenAI API version (azure only).
	APIVersion string

	// Dimensions is the vector size used by the hash backend and, for
	// model backends that support it, requested from the model.
	// Defaults to DefaultDimensions.
	Dimensions int
}

// New constructs a Generator from the given config. Construction never fails:
// if the configured model backend cannot be built or its trial embedding
// errors, the Generator silently downgrades to the deterministic hash backend
// (logged at WARN, not returned as an error).
//
// For model backends the true vector dimension is discovered with a one-shot
// trial embedding, overriding cfg.Dimensions.
func New(ctx context.Context, cfg *Config, log *slog.Logger) *Generator {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if log == nil {
		log = slog.Default()
	}

	backend, err := newModelBackend(cfg)
	if err == nil && backend != nil {
		dims, probeErr := probeDimensions(ctx, backend)
		if probeErr == nil {
			log.Info("embedder: model backend ready",
				slog.String("backend", backend.Name()),
				slog.Int("dimensions", dims),
			)
			return &Generator{backend: backend, dims: dims}
		}
		err = probeErr
	}

	if err != nil {
		log.Warn("embedder: model backend unavailable, using deterministic hash fallback",
			slog.String("provider", cfg.Provider),
			slog.Any("error", err),
		)
	}

	hash := NewHashEmbedder(cfg.Dimensions)
	return &Generator{backend: hash, dims: hash.Dimensions(), fallback: true}
}

// newModelBackend builds the HTTP backend for cfg.Provider, or (nil, nil)
// when the hash backend was requested explicitly.
func newModelBackend(cfg *Config) (Backend, error) {
	switch cfg.Provider {
	case "", "hash":
		return nil, nil

	case "ollama":
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model}), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai backend requires an API key")
		}
		baseURL := cfg.Endpoint
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
		}), nil

	case "azure":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure backend requires an API key")
		}
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure backend requires an endpoint")
		}
		apiVersion := cfg.APIVersion
		if apiVersion == "" {
			apiVersion = "2025-04-01-preview"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: apiVersion,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown provider %q — valid values: ollama, openai, azure, hash", cfg.Provider)
	}
}

// probeDimensions runs the one-shot trial embedding that discovers the true
// vector dimension of a model backend.
func probeDimensions(ctx context.Context, b Backend) (int, error) {
	vecs, err := b.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, fmt.Errorf("trial embedding: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("trial embedding: backend returned no vector")
	}
	return len(vecs[0]), nil
}

// ConfigFromEnv resolves the embedding configuration from environment
// variables:
//
//	EMBEDDING_PROVIDER    = ollama | openai | azure | hash (default: hash)
//	EMBEDDING_MODEL       — overrides the provider's default model
//	EMBEDDING_ENDPOINT    — overrides the provider's default endpoint
//	EMBEDDING_API_KEY     — credential; falls back to OPENAI_API_KEY or
//	                        AZURE_OPENAI_API_KEY for the matching provider
//	EMBEDDING_DIMENSIONS  — hash-backend dimension override (default: 384)
func ConfigFromEnv() *Config {
	cfg := &Config{
		Provider:   os.Getenv("EMBEDDING_PROVIDER"),
		Model:      os.Getenv("EMBEDDING_MODEL"),
		Endpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		APIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", DefaultDimensions),
	}

	if cfg.APIKey == "" {
		switch cfg.Provider {
		case "openai":
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		case "azure":
			cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		}
	}
	if cfg.Endpoint == "" {
		switch cfg.Provider {
		case "ollama":
			cfg.Endpoint = os.Getenv("OLLAMA_HOST")
		case "azure":
			cfg.Endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
	}

	return cfg
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

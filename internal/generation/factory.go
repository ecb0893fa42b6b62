package generation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"google.golang.org/genai"
)

// Config holds generation-provider configuration resolved from a config file
// or environment variables.
type Config struct {
	// Provider selects the backend: openrouter, openai, azure, ollama,
	// gemini, or mock. Empty selects openrouter when an OPENROUTER_API_KEY
	// is present, mock otherwise.
	Provider string

	// Model is the model name or deployment ID (e.g. "deepseek/deepseek-chat",
	// "gpt-4o", "llama3").
	Model string

	// BaseURL overrides the default API endpoint (Ollama host, Azure
	// endpoint, or OpenRouter-compatible server).
	BaseURL string

	// APIKey is the authentication credential for the selected provider.
	APIKey string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps the number of tokens per completion.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32

	// Timeout bounds a single completion request.
	Timeout time.Duration
}

// New constructs the configured Generator. A nil Generator with a nil error
// means mock mode: no credential is available, and callers should synthesize
// answers locally instead of calling a model.
func New(ctx context.Context, cfg *Config, log *slog.Logger) (Generator, error) {
	provider := cfg.Provider
	if provider == "" {
		if cfg.APIKey != "" {
			provider = "openrouter"
		} else {
			provider = "mock"
		}
	}

	switch provider {
	case "mock":
		log.Info("generation running in mock mode; no model credential configured")
		return nil, nil

	case "openrouter":
		if cfg.APIKey == "" {
			log.Info("generation running in mock mode; OPENROUTER_API_KEY not set")
			return nil, nil
		}
		g := NewOpenRouterClient(OpenRouterConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			Referer:     "https://github.com/54b3r/ragserve-go",
			Title:       "ragserve",
		})
		log.Info("generation backend ready", "provider", "openrouter", "model", g.Model())
		return g, nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("generation: OPENAI_API_KEY is required for openai provider")
		}
		chat, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			MaxTokens:   &cfg.MaxTokens,
			Temperature: &cfg.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("generation: openai init: %w", err)
		}
		log.Info("generation backend ready", "provider", "openai", "model", cfg.Model)
		return NewEinoGenerator(chat, "openai/"+cfg.Model), nil

	case "azure":
		if cfg.APIKey == "" || cfg.BaseURL == "" {
			return nil, fmt.Errorf("generation: azure provider needs AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT")
		}
		chat, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			ByAzure:     true,
			APIVersion:  cfg.AzureAPIVersion,
			MaxTokens:   &cfg.MaxTokens,
			Temperature: &cfg.Temperature,
			// Deployment names like "gpt-4.1" must pass through unmangled.
			AzureModelMapperFunc: func(model string) string { return model },
		})
		if err != nil {
			return nil, fmt.Errorf("generation: azure init: %w", err)
		}
		log.Info("generation backend ready", "provider", "azure", "deployment", cfg.Model)
		return NewEinoGenerator(chat, "azure/"+cfg.Model), nil

	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		chat, err := einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
			BaseURL: baseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("generation: ollama init: %w", err)
		}
		log.Info("generation backend ready", "provider", "ollama", "model", cfg.Model, "host", baseURL)
		return NewEinoGenerator(chat, "ollama/"+cfg.Model), nil

	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("generation: GOOGLE_API_KEY is required for gemini provider")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("generation: gemini client init: %w", err)
		}
		chat, err := einogemini.NewChatModel(ctx, &einogemini.Config{
			Client: client,
			Model:  cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("generation: gemini init: %w", err)
		}
		log.Info("generation backend ready", "provider", "gemini", "model", cfg.Model)
		return NewEinoGenerator(chat, "gemini/"+cfg.Model), nil

	default:
		return nil, fmt.Errorf("generation: unknown provider %q — valid values: openrouter, openai, azure, ollama, gemini, mock", provider)
	}
}

// ConfigFromEnv builds a Config from environment variables, used when no
// config file is present. OPENROUTER_API_KEY selects the openrouter provider
// by default; with no credential at all the pipeline runs in mock mode.
func ConfigFromEnv() *Config {
	cfg := &Config{
		Provider:        os.Getenv("GENERATION_PROVIDER"),
		Model:           os.Getenv("GENERATION_MODEL"),
		BaseURL:         os.Getenv("GENERATION_BASE_URL"),
		APIKey:          os.Getenv("OPENROUTER_API_KEY"),
		AzureAPIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		MaxTokens:       getEnvInt("GENERATION_MAX_TOKENS", 1024),
		Temperature:     getEnvFloat32("GENERATION_TEMPERATURE", 0.2),
	}

	switch cfg.Provider {
	case "openai":
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	case "azure":
		cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		if cfg.BaseURL == "" {
			cfg.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
	case "ollama":
		if cfg.BaseURL == "" {
			cfg.BaseURL = os.Getenv("OLLAMA_HOST")
		}
	case "gemini":
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	return cfg
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
embedding:
  provider: ollama
  model: nomic-embed-text
  dimensions: 768
store:
  backend: qdrant
  collection: my-docs
  qdrant:
    host: qdrant.internal
    port: 6334
generation:
  provider: openrouter
  model: deepseek/deepseek-chat
  max_tokens: 1024
  temperature: 0.1
server:
  port: 9000
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
		"VECTOR_STORE_BACKEND", "VECTOR_STORE_COLLECTION",
		"QDRANT_HOST", "QDRANT_PORT",
		"GENERATION_PROVIDER", "GENERATION_MODEL", "GENERATION_MAX_TOKENS", "GENERATION_TEMPERATURE",
		"RAGSERVE_PORT",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"EMBEDDING_PROVIDER":      "ollama",
		"EMBEDDING_MODEL":         "nomic-embed-text",
		"EMBEDDING_DIMENSIONS":    "768",
		"VECTOR_STORE_BACKEND":    "qdrant",
		"VECTOR_STORE_COLLECTION": "my-docs",
		"QDRANT_HOST":             "qdrant.internal",
		"QDRANT_PORT":             "6334",
		"GENERATION_PROVIDER":     "openrouter",
		"GENERATION_MODEL":        "deepseek/deepseek-chat",
		"GENERATION_MAX_TOKENS":   "1024",
		"GENERATION_TEMPERATURE":  "0.1",
		"RAGSERVE_PORT":           "9000",
		"LOG_LEVEL":               "debug",
		"LOG_FORMAT":              "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
store:
  backend: qdrant
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("VECTOR_STORE_BACKEND", "sqlite")

	log := slog.Default()
	_, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("VECTOR_STORE_BACKEND"); got != "sqlite" {
		t.Errorf("VECTOR_STORE_BACKEND: expected env override %q, got %q", "sqlite", got)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("store: [not a mapping"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Fatal("want parse error for malformed YAML")
	}
}

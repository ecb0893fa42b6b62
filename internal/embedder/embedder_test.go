package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// failingBackend always returns an error, simulating a broken model endpoint.
type failingBackend struct{}

func (failingBackend) Embed(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("connection refused")
}
func (failingBackend) Name() string { return "failing" }

func Test_Generator_EmptyBatch(t *testing.T) {
	t.Parallel()
	g := New(context.Background(), &Config{Provider: "hash"}, slog.Default())

	vecs, err := g.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vecs == nil || len(vecs) != 0 {
		t.Errorf("want empty non-nil result, got %v", vecs)
	}
}

func Test_Generator_OutputAlignsWithInput(t *testing.T) {
	t.Parallel()
	g := New(context.Background(), &Config{Provider: "hash", Dimensions: 64}, slog.Default())

	vecs, err := g.Embed(context.Background(), []string{"alpha", "   ", "beta"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("want 3 vectors, got %d", len(vecs))
	}

	// The whitespace-only element maps to the zero vector, in place.
	for i, v := range vecs[1] {
		if v != 0 {
			t.Fatalf("middle vector dim %d: want 0, got %v", i, v)
		}
	}
	nonZero := func(v []float32) bool {
		for _, x := range v {
			if x != 0 {
				return true
			}
		}
		return false
	}
	if !nonZero(vecs[0]) || !nonZero(vecs[2]) {
		t.Error("non-empty texts produced zero vectors")
	}
}

func Test_Generator_BackendErrorIsGenerationFailed(t *testing.T) {
	t.Parallel()
	g := &Generator{backend: failingBackend{}, dims: 8}

	_, err := g.Embed(context.Background(), []string{"boom"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("want ErrGenerationFailed, got %v", err)
	}
}

func Test_New_FallsBackWhenModelUnreachable(t *testing.T) {
	t.Parallel()

	// An Ollama endpoint that rejects every request forces the trial
	// embedding to fail, which must downgrade to the hash backend.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := New(context.Background(), &Config{Provider: "ollama", Endpoint: srv.URL}, slog.Default())

	if !g.Fallback() {
		t.Fatal("want fallback mode after model failure")
	}
	if g.Dimensions() != DefaultDimensions {
		t.Errorf("want default dimensions %d, got %d", DefaultDimensions, g.Dimensions())
	}

	// The fallback must still produce usable vectors.
	vecs, err := g.Embed(context.Background(), []string{"still works"})
	if err != nil {
		t.Fatalf("embed after fallback: %v", err)
	}
	if len(vecs[0]) != DefaultDimensions {
		t.Errorf("want %d dims, got %d", DefaultDimensions, len(vecs[0]))
	}
}

func Test_New_ModelModeDiscoversDimensions(t *testing.T) {
	t.Parallel()

	// A fake Ollama server that returns 5-dimensional vectors; the trial
	// embedding must override the configured default.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"embeddings":[[0.1,0.2,0.3,0.4,0.5]]}`)
	}))
	defer srv.Close()

	g := New(context.Background(), &Config{Provider: "ollama", Endpoint: srv.URL}, slog.Default())

	if g.Fallback() {
		t.Fatal("want model mode, got fallback")
	}
	if g.Dimensions() != 5 {
		t.Errorf("want discovered dimension 5, got %d", g.Dimensions())
	}
}

func Test_OllamaEmbedder_BatchCountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"embeddings":[[0.1]]}`)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	_, err := e.Embed(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatal("want error on embedding count mismatch")
	}
}

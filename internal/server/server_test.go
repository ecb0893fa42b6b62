package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragserve-go/internal/rag"
	"github.com/54b3r/ragserve-go/internal/vectorstore"
)

// fakeAnswerer is an in-memory pipeline stand-in for handler tests.
type fakeAnswerer struct {
	answer  rag.Answer
	addID   string
	addErr  error
	doc     *vectorstore.Document
	found   bool
	results []rag.SearchResult
}

func (f *fakeAnswerer) AnswerQuestion(_ context.Context, _ string, _ int) rag.Answer {
	return f.answer
}

func (f *fakeAnswerer) AddDocument(_ context.Context, text string, _ map[string]any, _ bool) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	return f.addID, nil
}

func (f *fakeAnswerer) BulkAdd(_ context.Context, docs []rag.DocumentInput, _ bool) ([]string, error) {
	ids := make([]string, 0, len(docs))
	for i := range docs[:len(docs)-1] { // last one reported as duplicate
		ids = append(ids, fmt.Sprintf("id-%d", i))
	}
	return ids, nil
}

func (f *fakeAnswerer) Search(_ context.Context, _ string, _ int) ([]rag.SearchResult, error) {
	return f.results, nil
}

func (f *fakeAnswerer) UpdateDocument(_ context.Context, _ string, _ *string, _ map[string]any) (bool, error) {
	return f.found, nil
}

func (f *fakeAnswerer) DeleteDocument(_ context.Context, _ string) (bool, error) {
	return f.found, nil
}

func (f *fakeAnswerer) GetDocument(_ context.Context, _ string) (*vectorstore.Document, error) {
	return f.doc, nil
}

func (f *fakeAnswerer) Stats(_ context.Context) vectorstore.Stats {
	return vectorstore.Stats{DocumentCount: 7, CollectionName: "documents"}
}

func (f *fakeAnswerer) ModelUsed() string { return "mock" }

// newTestServer builds a Server around the fake with a private registry.
func newTestServer(t *testing.T, fake *fakeAnswerer, cfg *Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Registry = prometheus.NewRegistry()
	s, err := New(fake, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

// do runs one request through the full middleware chain.
func do(s *Server, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.RemoteAddr = "10.0.0.1:54321"
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func Test_HandleAddDocument(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAnswerer{addID: "abc123"}, nil)

	rec := do(s, http.MethodPost, "/api/documents", `{"text":"hello","metadata":{"source":"t"}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", rec.Code, rec.Body)
	}

	var resp documentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.ID != "abc123" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func Test_HandleAddDocument_InvalidInput(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAnswerer{
		addErr: fmt.Errorf("rag: %w: text cannot be empty", rag.ErrInvalidInput),
	}, nil)

	rec := do(s, http.MethodPost, "/api/documents", `{"text":""}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("want 400, got %d", rec.Code)
	}
}

func Test_HandleAddDocument_MalformedBody(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAnswerer{}, nil)

	rec := do(s, http.MethodPost, "/api/documents", `{not json`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("want 400, got %d", rec.Code)
	}
}

func Test_HandleBulkAdd(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAnswerer{}, nil)

	body := `{"documents":[{"text":"a"},{"text":"b"},{"text":"a"}]}`
	rec := do(s, http.MethodPost, "/api/documents/bulk", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", rec.Code, rec.Body)
	}

	var resp bulkAddResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AddedCount != 2 || resp.SkippedCount != 1 {
		t.Errorf("want 2 added / 1 skipped, got %+v", resp)
	}
}

func Test_HandleGetDocument_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAnswerer{doc: nil}, nil)

	rec := do(s, http.MethodGet, "/api/documents/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("want 404, got %d", rec.Code)
	}
}

func Test_HandleGetDocument_OmitsEmbedding(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAnswerer{doc: &vectorstore.Document{
		ID:        "abc",
		Text:      "stored text",
		Embedding: []float32{1, 2, 3},
		Metadata:  map[string]any{"source": "t"},
	}}, nil)

	rec := do(s, http.MethodGet, "/api/documents/abc", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "embedding") {
		t.Error("embedding must not leak into the API response")
	}
}

func Test_HandleUpdateDocument(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeAnswerer{found: true}, nil)
		rec := do(s, http.MethodPatch, "/api/documents/abc", `{"text":"new"}`, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("want 200, got %d", rec.Code)
		}
	})
	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeAnswerer{found: false}, nil)
		rec := do(s, http.MethodPatch, "/api/documents/abc", `{"text":"new"}`, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("want 404, got %d", rec.Code)
		}
	})
	t.Run("empty update", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeAnswerer{found: true}, nil)
		rec := do(s, http.MethodPatch, "/api/documents/abc", `{}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("want 400, got %d", rec.Code)
		}
	})
}

func Test_HandleAsk(t *testing.T) {
	t.Parallel()
	want := rag.Answer{
		Answer:                "Blue.",
		Sources:               []rag.SearchResult{{Content: "sky", Score: 0.9}},
		ModelUsed:             "mock",
		ContextDocumentsFound: 1,
	}
	s := newTestServer(t, &fakeAnswerer{answer: want}, nil)

	rec := do(s, http.MethodPost, "/api/ask", `{"question":"sky color?"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", rec.Code, rec.Body)
	}

	var got rag.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Answer != want.Answer || got.ContextDocumentsFound != 1 {
		t.Errorf("answer mangled in transit: %+v", got)
	}
}

func Test_HandleAsk_Validation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAnswerer{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"empty question", `{"question":"  "}`},
		{"max_results too high", `{"question":"x","max_results":50}`},
		{"max_results negative", `{"question":"x","max_results":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := do(s, http.MethodPost, "/api/ask", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("want 400, got %d", rec.Code)
			}
		})
	}
}

func Test_HandleStats(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAnswerer{}, nil)

	rec := do(s, http.MethodGet, "/api/stats", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}

	var stats vectorstore.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.DocumentCount != 7 || stats.CollectionName != "documents" {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func Test_HandleHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAnswerer{}, nil)

	rec := do(s, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health body: %s", rec.Body)
	}
}

// failPinger always reports its dependency as down.
type failPinger struct{}

func (failPinger) Ping(context.Context) error { return fmt.Errorf("connection refused") }
func (failPinger) Name() string               { return "qdrant" }

// okPinger always reports healthy.
type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }
func (okPinger) Name() string               { return "sqlite" }

func Test_HandleReady(t *testing.T) {
	t.Parallel()

	t.Run("all healthy", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeAnswerer{}, &Config{Pingers: []Pinger{okPinger{}}})
		rec := do(s, http.MethodGet, "/api/ready", "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("want 200, got %d", rec.Code)
		}
	})
	t.Run("dependency down", func(t *testing.T) {
		t.Parallel()
		s := newTestServer(t, &fakeAnswerer{}, &Config{Pingers: []Pinger{okPinger{}, failPinger{}}})
		rec := do(s, http.MethodGet, "/api/ready", "", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("want 503, got %d", rec.Code)
		}

		var resp readyResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Ready || len(resp.Checks) != 2 || resp.Checks[1].OK {
			t.Errorf("unexpected ready body: %+v", resp)
		}
	})
}

func Test_AuthMiddleware(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAnswerer{}, &Config{APIKey: "secret"})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		rec := do(s, http.MethodGet, "/api/stats", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("want 401, got %d", rec.Code)
		}
	})
	t.Run("wrong token", func(t *testing.T) {
		t.Parallel()
		rec := do(s, http.MethodGet, "/api/stats", "", map[string]string{"Authorization": "Bearer nope"})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("want 401, got %d", rec.Code)
		}
	})
	t.Run("valid token", func(t *testing.T) {
		t.Parallel()
		rec := do(s, http.MethodGet, "/api/stats", "", map[string]string{"Authorization": "Bearer secret"})
		if rec.Code != http.StatusOK {
			t.Errorf("want 200, got %d", rec.Code)
		}
	})
	t.Run("health stays open", func(t *testing.T) {
		t.Parallel()
		rec := do(s, http.MethodGet, "/api/health", "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("want 200 without auth, got %d", rec.Code)
		}
	})
}

func Test_RateLimit(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, &fakeAnswerer{}, &Config{RateLimit: 1, RateBurst: 2})

	var got429 bool
	for i := 0; i < 5; i++ {
		rec := do(s, http.MethodGet, "/api/stats", "", nil)
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
			if rec.Header().Get("Retry-After") == "" {
				t.Error("429 must carry Retry-After")
			}
		}
	}
	if !got429 {
		t.Error("burst of 5 requests at burst=2 never hit the rate limit")
	}
}

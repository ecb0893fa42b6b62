package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragserve-go/internal/rag"
	"github.com/54b3r/ragserve-go/internal/vectorstore"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must cover a full live generation round trip.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics. If nil, a private
	// registry is created; /metrics always serves whichever is in use.
	Registry *prometheus.Registry
}

// answerer is the interface the handlers call into the question-answering
// pipeline through. *rag.Pipeline satisfies it; tests inject a fake.
type answerer interface {
	AnswerQuestion(ctx context.Context, question string, maxResults int) rag.Answer
	AddDocument(ctx context.Context, text string, metadata map[string]any, allowDuplicates bool) (string, error)
	BulkAdd(ctx context.Context, docs []rag.DocumentInput, allowDuplicates bool) ([]string, error)
	Search(ctx context.Context, query string, limit int) ([]rag.SearchResult, error)
	UpdateDocument(ctx context.Context, id string, text *string, metadata map[string]any) (bool, error)
	DeleteDocument(ctx context.Context, id string) (bool, error)
	GetDocument(ctx context.Context, id string) (*vectorstore.Document, error)
	Stats(ctx context.Context) vectorstore.Stats
	ModelUsed() string
}

// Server is the HTTP server fronting the RAG pipeline.
type Server struct {
	// pipeline answers questions and manages documents.
	pipeline answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// registry is the Prometheus registry served by GET /metrics.
	registry *prometheus.Registry
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// started is when the server began serving, reported as uptime by /api/health.
	started time.Time
}

// documentRequest is the JSON body for POST /api/documents.
type documentRequest struct {
	// Text is the document content to embed and store.
	Text string `json:"text"`
	// Metadata holds optional key-value pairs attached to the document.
	Metadata map[string]any `json:"metadata,omitempty"`
	// AllowDuplicates stores the document even when identical content exists.
	AllowDuplicates bool `json:"allow_duplicates,omitempty"`
}

// documentResponse is the JSON response for document write operations.
type documentResponse struct {
	// Success reports whether the operation completed.
	Success bool `json:"success"`
	// ID is the content-derived document id, when applicable.
	ID string `json:"id,omitempty"`
	// Message is a human-readable outcome description.
	Message string `json:"message"`
}

// bulkAddRequest is the JSON body for POST /api/documents/bulk.
type bulkAddRequest struct {
	// Documents is the batch to insert.
	Documents []documentRequest `json:"documents"`
	// AllowDuplicates stores documents even when identical content exists.
	AllowDuplicates bool `json:"allow_duplicates,omitempty"`
}

// bulkAddResponse is the JSON response for POST /api/documents/bulk.
type bulkAddResponse struct {
	// Success reports whether the batch completed.
	Success bool `json:"success"`
	// AddedIDs lists the ids actually inserted; deduplicated documents are omitted.
	AddedIDs []string `json:"added_ids"`
	// AddedCount is len(AddedIDs).
	AddedCount int `json:"added_count"`
	// SkippedCount is the number of documents skipped as duplicates.
	SkippedCount int `json:"skipped_count"`
}

// updateRequest is the JSON body for PATCH /api/documents/{id}.
// Absent fields are left unchanged.
type updateRequest struct {
	// Text replaces the document content and re-embeds it when present.
	Text *string `json:"text,omitempty"`
	// Metadata replaces the document metadata when present.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// getDocumentResponse is the JSON response for GET /api/documents/{id}.
// The embedding is deliberately omitted; it is an internal representation.
type getDocumentResponse struct {
	// ID is the document id.
	ID string `json:"id"`
	// Text is the stored document content.
	Text string `json:"text"`
	// Metadata is the stored metadata, including the stamped bookkeeping fields.
	Metadata map[string]any `json:"metadata"`
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the text to search for.
	Query string `json:"query"`
	// Limit is the number of results to return (default 5).
	Limit int `json:"limit,omitempty"`
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the natural-language question to answer.
	Question string `json:"question"`
	// MaxResults bounds the context documents retrieved (default 5, max 10).
	MaxResults int `json:"max_results,omitempty"`
}

// errorResponse is the JSON body for all non-2xx responses.
type errorResponse struct {
	// Detail describes the failure.
	Detail string `json:"detail"`
}

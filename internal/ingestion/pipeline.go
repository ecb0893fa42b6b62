// Package ingestion implements the bulk document ingestion pipeline.
// It reads content from HTTP(S) URLs or local files, splits it into
// overlapping chunks, and stores the chunks through the RAG pipeline, which
// embeds and deduplicates them. Invoked by the `ragserve ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/54b3r/ragserve-go/internal/rag"
)

// Source describes one content source to be ingested.
type Source struct {
	// Location is an HTTP(S) URL or a local file path.
	Location string

	// Metadata holds extra key-value pairs attached to every chunk from
	// this source (on top of the stamped source/chunk_index fields).
	Metadata map[string]any
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between
	// consecutive chunks. Defaults to 100 if zero.
	ChunkOverlap int

	// HTTPTimeout is the timeout for each fetch request.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// adder is the slice of the RAG pipeline that ingestion needs.
type adder interface {
	BulkAdd(ctx context.Context, docs []rag.DocumentInput, allowDuplicates bool) ([]string, error)
}

// Pipeline orchestrates the fetch → chunk → store flow for a set of sources.
// Embedding and deduplication happen inside the RAG pipeline, so re-ingesting
// an unchanged source is a cheap no-op.
type Pipeline struct {
	// pipeline embeds and stores the chunks.
	pipeline adder

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is the HTTP client used for fetching URL sources.
	httpClient *http.Client
}

// Result summarises one completed ingestion run.
type Result struct {
	// Sources is the number of sources processed.
	Sources int
	// Chunks is the total number of chunks produced.
	Chunks int
	// Added is the number of chunks actually inserted (deduplicated chunks
	// are processed but not re-added).
	Added int
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(pipeline adder, cfg *Config) (*Pipeline, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("ingestion: pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 100
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ragserve-go/1.0 (document ingestion)"
	}

	return &Pipeline{
		pipeline: pipeline,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// Ingest fetches, chunks, and stores all provided sources. It processes
// sources sequentially and returns the first error encountered. Progress is
// reported via the optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, sources []Source, progress func(msg string)) (Result, error) {
	if progress == nil {
		progress = func(string) {}
	}

	var res Result
	for _, src := range sources {
		progress(fmt.Sprintf("reading %s", src.Location))

		content, err := p.read(ctx, src.Location)
		if err != nil {
			return res, fmt.Errorf("ingestion: read failed for %s: %w", src.Location, err)
		}

		chunks := chunkText(content, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
		progress(fmt.Sprintf("chunked %s into %d chunks", src.Location, len(chunks)))

		docs := make([]rag.DocumentInput, len(chunks))
		for i, chunk := range chunks {
			meta := map[string]any{
				"source":      src.Location,
				"chunk_index": i,
			}
			for k, v := range src.Metadata {
				meta[k] = v
			}
			docs[i] = rag.DocumentInput{Text: chunk, Metadata: meta}
		}

		added, err := p.pipeline.BulkAdd(ctx, docs, false)
		if err != nil {
			return res, fmt.Errorf("ingestion: store failed for %s: %w", src.Location, err)
		}

		res.Sources++
		res.Chunks += len(chunks)
		res.Added += len(added)
		progress(fmt.Sprintf("stored %s: %d/%d chunks added", src.Location, len(added), len(chunks)))
	}
	return res, nil
}

// read fetches a URL source or reads a local file.
func (p *Pipeline) read(ctx context.Context, location string) (string, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return p.fetch(ctx, location)
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}

// fetch retrieves the content at the given URL.
func (p *Pipeline) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "text/plain, text/html")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// chunkText splits text into chunks of at most size characters, with overlap
// characters repeated between consecutive chunks. Whitespace-only chunks are
// dropped. Counts are in runes so multi-byte text never splits mid-character.
func chunkText(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

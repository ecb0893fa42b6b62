// Package vectorstore provides a content-addressed document collection with
// nearest-neighbour search. Documents are keyed by a deterministic hash of
// their text and metadata, which gives idempotent, deduplicated inserts.
//
// The store is distance-native: Search returns squared Euclidean distances
// (lower = closer) and leaves any similarity scoring convention to the
// caller. Three backends implement the Store interface: an in-memory map,
// a SQLite-persisted variant, and a Qdrant-backed variant.
package vectorstore

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"
)

// MaxSearchResults caps the number of documents a single search may return.
// Requested limits are clamped to [1, MaxSearchResults].
const MaxSearchResults = 50

// ErrStorage indicates a backend failure (I/O error, corrupt row, unreachable
// server) during an operation that mutates or queries the collection.
// Not-found conditions are reported as boolean/nil results, never as errors.
var ErrStorage = errors.New("vector store failure")

// ErrDimensionMismatch indicates that a vector's dimension does not match the
// dimension the collection was populated with. Mixing dimensions (e.g. after
// switching embedding backends over a persisted collection) would make every
// stored vector incomparable, so inserts and searches reject it outright.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Document is a stored unit of knowledge.
type Document struct {
	// ID is the content-derived identifier. Computed by the store on insert;
	// any caller-supplied value is ignored.
	ID string

	// Text is the original passage.
	Text string

	// Embedding is the fixed-dimension vector for Text.
	Embedding []float32

	// Metadata holds caller-supplied key-value pairs. The store stamps
	// "timestamp" (epoch seconds) and "text_length" on insert and update.
	Metadata map[string]any
}

// Result is a single search hit. Results are ephemeral and never alias the
// stored Document's mutable state.
type Result struct {
	// ID is the matched document's identifier.
	ID string

	// Text is the matched document's passage.
	Text string

	// Distance is the squared Euclidean distance between the query vector
	// and the document's embedding. Lower means closer; for unit-normalized
	// vectors the range is [0, 4].
	Distance float64

	// Metadata is a copy of the document's metadata at query time.
	Metadata map[string]any
}

// Update describes a partial document update. Nil fields are left unchanged.
type Update struct {
	// Text replaces the document's passage when non-nil.
	Text *string

	// Embedding replaces the document's vector when non-nil.
	Embedding []float32

	// Metadata replaces the document's metadata map when non-nil.
	Metadata map[string]any
}

// Stats summarises the collection. Stats retrieval never fails — backends
// return a zeroed Stats value when they cannot answer.
type Stats struct {
	// DocumentCount is the number of documents currently stored.
	DocumentCount int `json:"document_count"`

	// CollectionName is the collection label.
	CollectionName string `json:"collection_name"`
}

// Store is a single named collection of Documents. Implementations must be
// safe for concurrent use; each insert/update/delete is atomic at
// single-document granularity.
type Store interface {
	// Add inserts a document, computing its content-derived id. When
	// allowDuplicates is false and the id already exists the call is a
	// no-op that returns the existing id. Backend failures are ErrStorage.
	Add(ctx context.Context, doc Document, allowDuplicates bool) (string, error)

	// BulkAdd inserts a batch with the same per-document dedup rule as Add,
	// but returns only the ids that were actually inserted — documents
	// skipped as duplicates are silently omitted from the result.
	BulkAdd(ctx context.Context, docs []Document, allowDuplicates bool) ([]string, error)

	// Search returns up to limit nearest documents by squared Euclidean
	// distance, nearest first. limit is clamped to [1, MaxSearchResults].
	// Ties are broken by insertion order (earlier insert wins).
	Search(ctx context.Context, query []float32, limit int) ([]Result, error)

	// Update applies a partial update to an existing document. Returns
	// (false, nil) when the id does not exist. Text or metadata changes
	// re-stamp "timestamp" and "text_length".
	Update(ctx context.Context, id string, upd Update) (bool, error)

	// Delete removes a document. Returns (false, nil) when the id does not exist.
	Delete(ctx context.Context, id string) (bool, error)

	// Get returns the document with the given id, or nil when absent.
	// The returned document never aliases internal state.
	Get(ctx context.Context, id string) (*Document, error)

	// Stats returns collection statistics. Never fails; a zeroed value is
	// returned when the backend cannot answer.
	Stats(ctx context.Context) Stats

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// clampLimit bounds a requested result count to [1, MaxSearchResults].
func clampLimit(k int) int {
	if k < 1 {
		return 1
	}
	if k > MaxSearchResults {
		return MaxSearchResults
	}
	return k
}

// stampMetadata writes the volatile bookkeeping fields into meta in place:
// "timestamp" (epoch seconds, sub-second precision) and "text_length"
// (characters, not bytes). Called after id computation so volatile fields
// never influence the content hash.
func stampMetadata(meta map[string]any, text string) {
	meta["timestamp"] = float64(time.Now().UnixNano()) / 1e9
	meta["text_length"] = utf8.RuneCountInString(text)
}

// cloneMetadata returns a shallow copy of meta, never nil.
func cloneMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// cloneVector returns a copy of v, or nil for nil input.
func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// sqEuclidean computes the squared Euclidean distance between two vectors of
// equal length. For unit vectors this equals 2·(1−cosine similarity).
func sqEuclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

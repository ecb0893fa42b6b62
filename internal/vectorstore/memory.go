package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// entry is a stored document plus its insertion sequence number, used as the
// stable tie-breaker for equidistant search results.
type entry struct {
	doc Document
	seq int
}

// MemoryStore is a Store backed by an in-process map with brute-force linear
// search. It is the default backend for tests and small collections, and the
// search index reused by SQLiteStore.
type MemoryStore struct {
	// mu guards all fields below. Writes take the exclusive lock, so every
	// insert/update/delete is atomic at document granularity.
	mu sync.RWMutex

	// name is the collection label reported by Stats.
	name string

	// docs maps document id to its stored entry.
	docs map[string]*entry

	// nextSeq is the insertion sequence counter.
	nextSeq int

	// dims is the embedding dimension of the collection, fixed by the first
	// inserted vector. Zero until the first insert.
	dims int
}

// NewMemoryStore creates an empty in-memory collection with the given name.
func NewMemoryStore(name string) *MemoryStore {
	if name == "" {
		name = "documents"
	}
	return &MemoryStore{name: name, docs: make(map[string]*entry)}
}

// Add inserts a document under its content-derived id. Duplicate ids are a
// no-op returning the existing id unless allowDuplicates is set, in which
// case the stored document is overwritten (keeping its insertion order).
func (s *MemoryStore) Add(_ context.Context, doc Document, allowDuplicates bool) (string, error) {
	id := DocumentID(doc.Text, doc.Metadata)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; exists && !allowDuplicates {
		return id, nil
	}
	if err := s.checkDims(doc.Embedding); err != nil {
		return "", err
	}

	s.insertLocked(id, doc)
	return id, nil
}

// BulkAdd inserts a batch with per-document dedup. Unlike Add, documents
// skipped as duplicates do not contribute their id to the returned slice.
// Duplicates within the batch itself are skipped the same way.
func (s *MemoryStore) BulkAdd(_ context.Context, docs []Document, allowDuplicates bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]string, 0, len(docs))
	for _, doc := range docs {
		id := DocumentID(doc.Text, doc.Metadata)
		if _, exists := s.docs[id]; exists && !allowDuplicates {
			continue
		}
		if err := s.checkDims(doc.Embedding); err != nil {
			return nil, err
		}
		s.insertLocked(id, doc)
		added = append(added, id)
	}
	return added, nil
}

// Search scans the whole collection and returns the limit nearest documents
// by squared Euclidean distance, nearest first. Equidistant documents are
// ordered by insertion sequence (earlier insert first).
func (s *MemoryStore) Search(_ context.Context, query []float32, limit int) ([]Result, error) {
	limit = clampLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dims != 0 && len(query) != s.dims {
		return nil, fmt.Errorf("vectorstore: %w: query has %d dimensions, collection has %d",
			ErrDimensionMismatch, len(query), s.dims)
	}

	type scored struct {
		res Result
		seq int
	}
	hits := make([]scored, 0, len(s.docs))
	for _, e := range s.docs {
		hits = append(hits, scored{
			res: Result{
				ID:       e.doc.ID,
				Text:     e.doc.Text,
				Distance: sqEuclidean(query, e.doc.Embedding),
				Metadata: cloneMetadata(e.doc.Metadata),
			},
			seq: e.seq,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].res.Distance != hits[j].res.Distance {
			return hits[i].res.Distance < hits[j].res.Distance
		}
		return hits[i].seq < hits[j].seq
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = h.res
	}
	return out, nil
}

// Update applies a partial update. Returns (false, nil) for unknown ids.
func (s *MemoryStore) Update(_ context.Context, id string, upd Update) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.docs[id]
	if !ok {
		return false, nil
	}

	if upd.Embedding != nil {
		if err := s.checkDims(upd.Embedding); err != nil {
			return false, err
		}
		e.doc.Embedding = cloneVector(upd.Embedding)
	}
	if upd.Metadata != nil {
		e.doc.Metadata = cloneMetadata(upd.Metadata)
	}
	if upd.Text != nil {
		e.doc.Text = *upd.Text
	}
	if upd.Text != nil || upd.Metadata != nil {
		stampMetadata(e.doc.Metadata, e.doc.Text)
	}
	return true, nil
}

// Delete removes a document. Returns (false, nil) for unknown ids.
func (s *MemoryStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return false, nil
	}
	delete(s.docs, id)
	return true, nil
}

// Get returns a copy of the document with the given id, or nil when absent.
func (s *MemoryStore) Get(_ context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	doc := Document{
		ID:        e.doc.ID,
		Text:      e.doc.Text,
		Embedding: cloneVector(e.doc.Embedding),
		Metadata:  cloneMetadata(e.doc.Metadata),
	}
	return &doc, nil
}

// Stats reports the document count and collection name. Never fails.
func (s *MemoryStore) Stats(_ context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{DocumentCount: len(s.docs), CollectionName: s.name}
}

// Ping always succeeds — the map is in-process.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// restore inserts a document exactly as persisted — no id recomputation and
// no metadata re-stamping — assigning the next insertion sequence. Used by
// persistent backends replaying their collection at open, in original order.
func (s *MemoryStore) restore(id string, doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dims == 0 && len(doc.Embedding) > 0 {
		s.dims = len(doc.Embedding)
	}
	s.docs[id] = &entry{doc: doc, seq: s.nextSeq}
	s.nextSeq++
}

// checkDims validates a vector against the collection's fixed dimension.
// The first inserted vector pins the dimension. Must hold mu.
func (s *MemoryStore) checkDims(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("vectorstore: %w: empty embedding", ErrStorage)
	}
	if s.dims == 0 {
		s.dims = len(vec)
		return nil
	}
	if len(vec) != s.dims {
		return fmt.Errorf("vectorstore: %w: vector has %d dimensions, collection has %d",
			ErrDimensionMismatch, len(vec), s.dims)
	}
	return nil
}

// insertLocked stores doc under id, stamping volatile metadata and assigning
// an insertion sequence. Overwrites keep the original sequence so search
// tie-breaking stays stable across re-inserts. Must hold mu.
func (s *MemoryStore) insertLocked(id string, doc Document) {
	meta := cloneMetadata(doc.Metadata)
	stampMetadata(meta, doc.Text)

	seq := s.nextSeq
	if prev, exists := s.docs[id]; exists {
		seq = prev.seq
	} else {
		s.nextSeq++
	}

	s.docs[id] = &entry{
		doc: Document{
			ID:        id,
			Text:      doc.Text,
			Embedding: cloneVector(doc.Embedding),
			Metadata:  meta,
		},
		seq: seq,
	}
}

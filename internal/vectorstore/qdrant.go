package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant-backed store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. Used when the collection has to be created.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements Store backed by a Qdrant collection.
//
// Qdrant point ids must be UUIDs, while document ids are content hashes, so
// each document is stored under a UUID derived deterministically from its id
// (uuid v5 over the hex hash). The original id lives in the payload. Scores
// come back as cosine similarity and are converted to squared Euclidean
// distance, which is exact for unit-normalized vectors.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// payload keys for stored documents.
const (
	payloadDocID    = "doc_id"
	payloadText     = "text"
	payloadMetadata = "metadata" // JSON-encoded, preserves value types
)

// NewQdrantStore connects to Qdrant and ensures the target collection exists,
// creating it with a cosine-distance vector index if necessary.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	s := &QdrantStore{client: client, cfg: cfg}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// ensureCollection creates the collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: %w: collection existence check: %v", ErrStorage, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: %w: create collection %q: %v", ErrStorage, s.cfg.Collection, err)
	}
	return nil
}

// pointID maps a content-hash document id onto a deterministic UUID accepted
// by Qdrant as a point id.
func pointID(docID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String()
}

// Add inserts a document, deduplicating on its content-derived id.
func (s *QdrantStore) Add(ctx context.Context, doc Document, allowDuplicates bool) (string, error) {
	id := DocumentID(doc.Text, doc.Metadata)

	if !allowDuplicates {
		existing, err := s.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return id, nil
		}
	}

	if err := s.upsert(ctx, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// BulkAdd inserts a batch, silently omitting deduplicated documents from the
// returned id slice. Duplicates within the batch itself are skipped the same way.
func (s *QdrantStore) BulkAdd(ctx context.Context, docs []Document, allowDuplicates bool) ([]string, error) {
	added := make([]string, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		id := DocumentID(doc.Text, doc.Metadata)
		if !allowDuplicates {
			if seen[id] {
				continue
			}
			existing, err := s.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				continue
			}
		}
		if err := s.upsert(ctx, id, doc); err != nil {
			return nil, err
		}
		seen[id] = true
		added = append(added, id)
	}
	return added, nil
}

// upsert writes the document under its point id, stamping volatile metadata.
func (s *QdrantStore) upsert(ctx context.Context, id string, doc Document) error {
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("qdrant: %w: empty embedding", ErrStorage)
	}

	meta := cloneMetadata(doc.Metadata)
	stampMetadata(meta, doc.Text)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("qdrant: %w: encode metadata: %v", ErrStorage, err)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(pointID(id)),
		Vectors: qdrant.NewVectors(doc.Embedding...),
		Payload: qdrant.NewValueMap(map[string]any{
			payloadDocID:    id,
			payloadText:     doc.Text,
			payloadMetadata: string(metaJSON),
		}),
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("qdrant: %w: upsert: %v", ErrStorage, err)
	}
	return nil
}

// Search queries the collection and converts cosine similarity scores back to
// squared Euclidean distances (d = 2·(1−s) for unit vectors).
func (s *QdrantStore) Search(ctx context.Context, query []float32, limit int) ([]Result, error) {
	lim := uint64(clampLimit(limit))
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: %w: search: %v", ErrStorage, err)
	}

	out := make([]Result, 0, len(points))
	for _, p := range points {
		res := Result{Distance: 2 * (1 - float64(p.Score))}
		if res.Distance < 0 {
			res.Distance = 0
		}
		res.ID, res.Text, _, res.Metadata = decodePayload(p.Payload)
		out = append(out, res)
	}
	return out, nil
}

// Update applies a partial update by read-modify-write. Returns (false, nil)
// for unknown ids.
func (s *QdrantStore) Update(ctx context.Context, id string, upd Update) (bool, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if doc == nil {
		return false, nil
	}

	if upd.Text != nil {
		doc.Text = *upd.Text
	}
	if upd.Embedding != nil {
		doc.Embedding = cloneVector(upd.Embedding)
	}
	if upd.Metadata != nil {
		doc.Metadata = cloneMetadata(upd.Metadata)
	}

	// upsert re-stamps timestamp and text_length for every write, which
	// matches the contract for text/metadata updates.
	if err := s.upsert(ctx, id, *doc); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a document. Returns (false, nil) for unknown ids.
func (s *QdrantStore) Delete(ctx context.Context, id string) (bool, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pointID(id))),
	})
	if err != nil {
		return false, fmt.Errorf("qdrant: %w: delete %s: %v", ErrStorage, id, err)
	}
	return true, nil
}

// Get retrieves a document by id, or nil when absent.
func (s *QdrantStore) Get(ctx context.Context, id string) (*Document, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(pointID(id))},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: %w: get %s: %v", ErrStorage, id, err)
	}
	if len(points) == 0 {
		return nil, nil
	}

	p := points[0]
	doc := &Document{}
	doc.ID, doc.Text, _, doc.Metadata = decodePayload(p.Payload)
	if v := p.Vectors.GetVector(); v != nil {
		doc.Embedding = v.Data
	}
	return doc, nil
}

// Stats reports the exact point count. Never fails — a zeroed count is
// returned when Qdrant cannot answer.
func (s *QdrantStore) Stats(ctx context.Context) Stats {
	stats := Stats{CollectionName: s.cfg.Collection}
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err == nil {
		stats.DocumentCount = int(count)
	}
	return stats
}

// Ping checks Qdrant server health.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant ping: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// decodePayload unpacks the stored payload fields. The metadata JSON blob is
// decoded back into a map; a corrupt blob yields an empty map rather than an
// error, since a readable document beats a hard failure on a single bad row.
func decodePayload(payload map[string]*qdrant.Value) (id, text, metaJSON string, meta map[string]any) {
	meta = map[string]any{}
	if payload == nil {
		return "", "", "", meta
	}
	if v, ok := payload[payloadDocID]; ok {
		id = v.GetStringValue()
	}
	if v, ok := payload[payloadText]; ok {
		text = v.GetStringValue()
	}
	if v, ok := payload[payloadMetadata]; ok {
		metaJSON = v.GetStringValue()
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &meta)
		}
	}
	return id, text, metaJSON, meta
}

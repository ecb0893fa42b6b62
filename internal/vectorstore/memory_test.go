package vectorstore

import (
	"context"
	"errors"
	"testing"
)

func vec(vals ...float32) []float32 { return vals }

func Test_MemoryStore_AddDeduplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore("test")

	id1, err := s.Add(ctx, Document{Text: "hello", Embedding: vec(1, 0), Metadata: map[string]any{"source": "a"}}, false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id2, err := s.Add(ctx, Document{Text: "hello", Embedding: vec(1, 0), Metadata: map[string]any{"source": "a"}}, false)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if id1 != id2 {
		t.Errorf("duplicate add returned new id: %s vs %s", id1, id2)
	}
	if got := s.Stats(ctx).DocumentCount; got != 1 {
		t.Errorf("want 1 document, got %d", got)
	}
}

func Test_MemoryStore_AddPreservesOriginalTimestamp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore("test")

	id, _ := s.Add(ctx, Document{Text: "hello", Embedding: vec(1, 0)}, false)
	first, _ := s.Get(ctx, id)

	if _, err := s.Add(ctx, Document{Text: "hello", Embedding: vec(1, 0)}, false); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	second, _ := s.Get(ctx, id)

	if first.Metadata["timestamp"] != second.Metadata["timestamp"] {
		t.Error("deduplicated add must not touch the stored document")
	}
}

func Test_MemoryStore_BulkAddOmitsSkipped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore("test")

	if _, err := s.Add(ctx, Document{Text: "existing", Embedding: vec(1, 0)}, false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	added, err := s.BulkAdd(ctx, []Document{
		{Text: "existing", Embedding: vec(1, 0)}, // dup of seed
		{Text: "fresh", Embedding: vec(0, 1)},
		{Text: "fresh", Embedding: vec(0, 1)}, // dup within batch
	}, false)
	if err != nil {
		t.Fatalf("bulk add: %v", err)
	}
	if len(added) != 1 {
		t.Fatalf("want 1 inserted id, got %d: %v", len(added), added)
	}
	if got := s.Stats(ctx).DocumentCount; got != 2 {
		t.Errorf("want 2 documents, got %d", got)
	}
}

func Test_MemoryStore_SearchOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore("test")

	docs := []Document{
		{Text: "east", Embedding: vec(1, 0)},
		{Text: "north", Embedding: vec(0, 1)},
		{Text: "northeast", Embedding: vec(0.7071, 0.7071)},
	}
	if _, err := s.BulkAdd(ctx, docs, false); err != nil {
		t.Fatalf("bulk add: %v", err)
	}

	results, err := s.Search(ctx, vec(1, 0), 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("want 3 results, got %d", len(results))
	}
	if results[0].Text != "east" || results[1].Text != "northeast" || results[2].Text != "north" {
		t.Errorf("wrong order: %q %q %q", results[0].Text, results[1].Text, results[2].Text)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Error("results not sorted by ascending distance")
		}
	}
	if results[0].Distance != 0 {
		t.Errorf("exact match distance: want 0, got %v", results[0].Distance)
	}
}

func Test_MemoryStore_SearchTiesBreakByInsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore("test")

	// Both documents sit at the same distance from the query.
	if _, err := s.Add(ctx, Document{Text: "first", Embedding: vec(0, 1)}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(ctx, Document{Text: "second", Embedding: vec(0, -1)}, false); err != nil {
		t.Fatal(err)
	}

	results, err := s.Search(ctx, vec(1, 0), 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].Text != "first" {
		t.Errorf("tie must go to the earlier insert, got %q", results[0].Text)
	}
}

func Test_MemoryStore_SearchClampsLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore("test")

	for i := 0; i < 60; i++ {
		doc := Document{Text: "doc", Embedding: vec(float32(i), 1), Metadata: map[string]any{"n": i}}
		if _, err := s.Add(ctx, doc, false); err != nil {
			t.Fatal(err)
		}
	}

	results, err := s.Search(ctx, vec(0, 1), 1000)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != MaxSearchResults {
		t.Errorf("want limit clamped to %d, got %d", MaxSearchResults, len(results))
	}

	results, err = s.Search(ctx, vec(0, 1), 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("want limit clamped up to 1, got %d", len(results))
	}
}

func Test_MemoryStore_DimensionMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore("test")

	if _, err := s.Add(ctx, Document{Text: "a", Embedding: vec(1, 0, 0)}, false); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Add(ctx, Document{Text: "b", Embedding: vec(1, 0)}, false); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("add: want ErrDimensionMismatch, got %v", err)
	}
	if _, err := s.Search(ctx, vec(1, 0), 5); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("search: want ErrDimensionMismatch, got %v", err)
	}
}

func Test_MemoryStore_UpdateRestampsMetadata(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore("test")

	id, _ := s.Add(ctx, Document{Text: "short", Embedding: vec(1, 0)}, false)

	newText := "a much longer replacement text"
	ok, err := s.Update(ctx, id, Update{Text: &newText})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	doc, _ := s.Get(ctx, id)
	if doc.Text != newText {
		t.Errorf("text not updated: %q", doc.Text)
	}
	if got := doc.Metadata["text_length"]; got != len(newText) {
		t.Errorf("text_length not re-stamped: got %v want %d", got, len(newText))
	}
}

func Test_MemoryStore_UpdateUnknownID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore("test")

	ok, err := s.Update(ctx, "no-such-id", Update{Metadata: map[string]any{"k": "v"}})
	if err != nil {
		t.Fatalf("unknown id must not be an error: %v", err)
	}
	if ok {
		t.Error("want ok=false for unknown id")
	}
}

func Test_MemoryStore_DeleteAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore("test")

	id, _ := s.Add(ctx, Document{Text: "ephemeral", Embedding: vec(1, 0)}, false)

	ok, err := s.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if doc, _ := s.Get(ctx, id); doc != nil {
		t.Error("document still retrievable after delete")
	}
	ok, err = s.Delete(ctx, id)
	if err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
	if ok {
		t.Error("want ok=false on second delete")
	}
}

func Test_MemoryStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore("test")

	id, _ := s.Add(ctx, Document{Text: "guarded", Embedding: vec(1, 0), Metadata: map[string]any{"k": "v"}}, false)

	doc, _ := s.Get(ctx, id)
	doc.Metadata["k"] = "mutated"
	doc.Embedding[0] = 99

	fresh, _ := s.Get(ctx, id)
	if fresh.Metadata["k"] != "v" || fresh.Embedding[0] != 1 {
		t.Error("Get returned aliasing references to stored state")
	}
}

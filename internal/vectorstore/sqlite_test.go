package vectorstore

import (
	"context"
	"path/filepath"
	"testing"
)

func Test_SQLiteStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := OpenSQLite(":memory:", "test")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	id, err := s.Add(ctx, Document{Text: "persist me", Embedding: vec(1, 0), Metadata: map[string]any{"source": "t"}}, false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	doc, err := s.Get(ctx, id)
	if err != nil || doc == nil {
		t.Fatalf("get: doc=%v err=%v", doc, err)
	}
	if doc.Text != "persist me" || doc.Metadata["source"] != "t" {
		t.Errorf("round trip mangled document: %+v", doc)
	}

	results, err := s.Search(ctx, vec(1, 0), 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != id {
		t.Errorf("search miss: %+v", results)
	}
}

func Test_SQLiteStore_SurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "docs.db")

	s, err := OpenSQLite(path, "test")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id1, _ := s.Add(ctx, Document{Text: "first", Embedding: vec(0, 1)}, false)
	id2, _ := s.Add(ctx, Document{Text: "second", Embedding: vec(0, -1)}, false)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	re, err := OpenSQLite(path, "test")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer re.Close()

	if got := re.Stats(ctx).DocumentCount; got != 2 {
		t.Fatalf("want 2 documents after reopen, got %d", got)
	}
	doc, _ := re.Get(ctx, id1)
	if doc == nil || doc.Text != "first" {
		t.Errorf("first document lost: %+v", doc)
	}

	// Insertion-order tie-breaking must survive the reload.
	results, err := re.Search(ctx, vec(1, 0), 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results[0].ID != id1 || results[1].ID != id2 {
		t.Errorf("tie order lost across reopen: %v then %v", results[0].ID, results[1].ID)
	}
}

func Test_SQLiteStore_DedupAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "docs.db")

	s, _ := OpenSQLite(path, "test")
	id, _ := s.Add(ctx, Document{Text: "once", Embedding: vec(1, 0)}, false)
	s.Close()

	re, err := OpenSQLite(path, "test")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer re.Close()

	again, err := re.Add(ctx, Document{Text: "once", Embedding: vec(1, 0)}, false)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if again != id {
		t.Errorf("dedup broken across restart: %s vs %s", again, id)
	}
	if got := re.Stats(ctx).DocumentCount; got != 1 {
		t.Errorf("want 1 document, got %d", got)
	}
}

func Test_SQLiteStore_UpdateAndDeletePersist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "docs.db")

	s, _ := OpenSQLite(path, "test")
	keep, _ := s.Add(ctx, Document{Text: "keep", Embedding: vec(1, 0)}, false)
	drop, _ := s.Add(ctx, Document{Text: "drop", Embedding: vec(0, 1)}, false)

	newText := "kept and edited"
	if ok, err := s.Update(ctx, keep, Update{Text: &newText}); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Delete(ctx, drop); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	s.Close()

	re, err := OpenSQLite(path, "test")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer re.Close()

	doc, _ := re.Get(ctx, keep)
	if doc == nil || doc.Text != newText {
		t.Errorf("update lost across restart: %+v", doc)
	}
	if gone, _ := re.Get(ctx, drop); gone != nil {
		t.Error("deleted document resurrected after restart")
	}
}

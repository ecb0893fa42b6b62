package embedder

import (
	"context"
	"math"
	"strings"
	"testing"
)

func Test_HashEmbedder_Deterministic(t *testing.T) {
	t.Parallel()
	h := NewHashEmbedder(384)
	ctx := context.Background()

	a, err := h.Embed(ctx, []string{"the sky is blue"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, err := h.Embed(ctx, []string{"the sky is blue"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("vectors differ at dim %d: %v vs %v", i, a[0][i], b[0][i])
		}
	}
}

func Test_HashEmbedder_DistinctTexts(t *testing.T) {
	t.Parallel()
	h := NewHashEmbedder(384)
	ctx := context.Background()

	vecs, err := h.Embed(ctx, []string{"first document", "second document"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	same := true
	for i := range vecs[0] {
		if vecs[0][i] != vecs[1][i] {
			same = false
			break
		}
	}
	if same {
		t.Error("distinct texts produced identical vectors")
	}
}

func Test_HashEmbedder_DimensionAlwaysFixed(t *testing.T) {
	t.Parallel()
	h := NewHashEmbedder(384)
	ctx := context.Background()

	inputs := []string{
		"x",
		"   ",
		strings.Repeat("a very long passage of text ", 500),
		"unicode: héllo wörld ñ",
	}
	vecs, err := h.Embed(ctx, inputs)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != len(inputs) {
		t.Fatalf("want %d vectors, got %d", len(inputs), len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 384 {
			t.Errorf("input %d: want dimension 384, got %d", i, len(v))
		}
	}
}

func Test_HashEmbedder_WhitespaceOnlyIsZeroVector(t *testing.T) {
	t.Parallel()
	h := NewHashEmbedder(64)

	vecs, err := h.Embed(context.Background(), []string{"  \t\n "})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i, v := range vecs[0] {
		if v != 0 {
			t.Fatalf("dim %d: want 0, got %v", i, v)
		}
	}
}

func Test_HashEmbedder_UnitNorm(t *testing.T) {
	t.Parallel()
	h := NewHashEmbedder(384)

	vecs, err := h.Embed(context.Background(), []string{"normalize me"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	var mag float64
	for _, v := range vecs[0] {
		mag += float64(v) * float64(v)
	}
	mag = math.Sqrt(mag)
	if math.Abs(mag-1.0) > 1e-4 {
		t.Errorf("want unit magnitude, got %v", mag)
	}
}

func Test_HashEmbedder_CaseAndPaddingInsensitive(t *testing.T) {
	t.Parallel()
	h := NewHashEmbedder(128)
	ctx := context.Background()

	a, _ := h.Embed(ctx, []string{"Hello World"})
	b, _ := h.Embed(ctx, []string{"  hello world  "})

	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("normalized inputs differ at dim %d", i)
		}
	}
}

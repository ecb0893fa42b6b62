package embedder

import (
	"context"
	"crypto/sha256"
	"math"
	"strings"
)

// HashEmbedder is the deterministic fallback backend. It derives a vector
// purely from the SHA-256 digest and character statistics of the input text,
// so the system stays searchable when no embedding model can be reached.
//
// The algorithm is a pure function of (text, dimension): identical input
// always yields a bit-identical vector, and distinct texts are overwhelmingly
// likely to yield distinct vectors. Do not change it — stored vectors and
// golden test values depend on the exact arithmetic.
type HashEmbedder struct {
	// dims is the output vector dimension.
	dims int
}

// NewHashEmbedder constructs a HashEmbedder producing vectors of the given
// dimension. Non-positive dims falls back to DefaultDimensions.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Name returns the backend label used in logs and stats.
func (h *HashEmbedder) Name() string { return "hash-sha256" }

// Dimensions returns the output vector size.
func (h *HashEmbedder) Dimensions() int { return h.dims }

// Embed converts each text into its deterministic vector. It never fails and
// never contacts the network. The returned slice is parallel to texts.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embedOne(t)
	}
	return out, nil
}

// embedOne computes the vector for a single text:
//
//  1. Lower-case and trim the text; empty input yields the zero vector.
//  2. SHA-256 the normalized text and walk its bytes.
//  3. Per dimension, mix the hash byte, the character at position
//     (dim mod text length), and a log-length factor, then spread the value
//     through a sine transform.
//  4. Once hash bytes run out, fill with a position-dependent sine wave.
//  5. L2-normalize the result (left untouched when the magnitude is zero).
//
// Character positions and text length are counted in runes so multi-byte
// input produces the same values as the character-indexed original.
func (h *HashEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, h.dims)

	runes := []rune(strings.ToLower(strings.TrimSpace(text)))
	if len(runes) == 0 {
		return vec
	}

	digest := sha256.Sum256([]byte(string(runes)))
	textLen := float64(len(runes))
	lengthFactor := math.Log(textLen+1) / 10.0

	vals := make([]float64, 0, h.dims)
	for i := 0; i < len(digest) && len(vals) < h.dims; i++ {
		base := float64(digest[i]) / 255.0
		charVal := float64(runes[len(vals)%len(runes)]) / 255.0

		v := 0.6*base + 0.3*charVal + 0.1*lengthFactor
		v = (math.Sin(v*2*math.Pi) + 1) / 2
		vals = append(vals, v)
	}

	// The digest covers at most 32 dimensions; the remainder is a
	// deterministic sine fill seeded by position and text length.
	for len(vals) < h.dims {
		pos := float64(len(vals))
		vals = append(vals, (math.Sin(pos*textLen/100.0)+1)/2)
	}

	var mag float64
	for _, v := range vals {
		mag += v * v
	}
	mag = math.Sqrt(mag)

	for i, v := range vals {
		if mag > 0 {
			v /= mag
		}
		vec[i] = float32(v)
	}
	return vec
}

package vectorstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// volatileKeys are metadata fields stamped by the store after id computation.
// They are excluded from the content hash so that re-adding a document read
// back from the store still deduplicates against the original.
var volatileKeys = map[string]bool{
	"timestamp":   true,
	"text_length": true,
}

// DocumentID derives the deterministic, content-addressed identifier for a
// (text, metadata) pair. The hash covers the text and a canonical rendering
// of the metadata — keys sorted, values JSON-encoded — so it is independent
// of map iteration order. Identical content always maps to the same id,
// which is the basis of the store's dedup contract.
func DocumentID(text string, metadata map[string]any) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		if volatileKeys[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{1})
		val, err := json.Marshal(metadata[k])
		if err != nil {
			// Non-serializable values still need a stable rendering.
			val = []byte(fmt.Sprintf("%v", metadata[k]))
		}
		h.Write(val)
		h.Write([]byte{1})
	}

	return hex.EncodeToString(h.Sum(nil))
}

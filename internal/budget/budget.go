// Package budget provides token budget estimation and context trimming for
// the live generation path. Because ragserve supports multiple LLM backends
// with different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose and code). This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B, GPT-3.5)
	// while leaving room for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TrimContext drops retrieved documents from the end of docs until the total
// estimated token count of reserved + docs fits within maxTokens. docs must be
// ordered most-relevant first, so the least relevant documents are dropped
// first. reserved is the estimated token count of the prompt text surrounding
// the documents (system prompt, question, template).
//
// The most relevant document is never dropped, even when it alone exceeds the
// budget — sending an over-long prompt to the backend beats sending none, and
// the backend reports its own limit errors.
func TrimContext(docs []string, reserved, maxTokens int) []string {
	if len(docs) <= 1 {
		return docs
	}

	total := reserved
	for i, doc := range docs {
		total += Estimate(doc)
		if total > maxTokens && i > 0 {
			return docs[:i]
		}
	}
	return docs
}

package rag

import (
	"fmt"
	"strings"
)

// systemPrompt is the fixed system instruction for every live generation.
const systemPrompt = "You are a helpful assistant that answers questions based on provided context. " +
	"Always be honest about the limitations of the information available."

// contextSeparator joins retrieved documents inside the prompt.
const contextSeparator = "\n---\n"

// buildUserPrompt renders the user-role message. With context documents the
// model is told to answer from them and to flag insufficiency; without, it is
// told to answer from general knowledge and to say that no context was found.
func buildUserPrompt(question string, contextDocs []string) string {
	if len(contextDocs) == 0 {
		return fmt.Sprintf(`Question: %s

I don't have any specific context documents to reference. Please provide a general answer based on your knowledge, but mention that this is without specific context.`, question)
	}

	return fmt.Sprintf(`Based on the following context, answer the question. If the context doesn't contain enough information, say so clearly.

Context:
%s

Question: %s

Please provide a helpful answer based on the context above. If you reference specific information, mention which part of the context it comes from.`,
		strings.Join(contextDocs, contextSeparator), question)
}

// mockAnswer synthesizes the canned answer used when no generation backend is
// configured. It is explicitly labeled as simulated.
func mockAnswer(question string, contextCount int) string {
	preview := truncateRunes(question, 100)
	if contextCount > 0 {
		return fmt.Sprintf(`Based on the retrieved context, I found %d relevant document(s) related to your question: "%s..."

Context summary: The documents contain information that appears relevant to your query.

Note: This is a simulated response because no generation API key was provided. In a real deployment, this would contain an AI-generated answer based on the context documents.`, contextCount, preview)
	}

	return fmt.Sprintf(`I couldn't find any relevant documents in the database for your question: "%s..."

Note: This is a simulated response because no generation API key was provided. In a real deployment, this would contain an AI-generated answer.`, preview)
}

// truncateRunes returns at most n characters of s, counting runes so
// multi-byte text is never split mid-character.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

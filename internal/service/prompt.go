package service

import (
	"strings"

	"github.com/cloo-solutions/reportqa/internal/domain"
)

// FallbackAnswer is shown whenever a question cannot be answered because of an error.
const FallbackAnswer = "Sorry, I encountered an error while processing your question."

const promptTemplate = `You are an AI assistant designed to answer questions based on the provided context from annual reports. Use the following pieces of context to answer the question at the end. If the context does not contain the answer, state that the information is not found in the provided documents. Do not make up information or answer questions outside of the given context. Be concise and precise. If possible, cite the source document if available in metadata.

Context:
{context}

Question: {question}

Helpful Answer:`

// JoinContext concatenates chunk contents separated by blank lines.
func JoinContext(chunks []domain.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, "\n\n")
}

// RenderPrompt fills the answer template.
func RenderPrompt(context, question string) string {
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(promptTemplate)
}

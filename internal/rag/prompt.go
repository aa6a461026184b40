package rag

import (
	"fmt"
	"strings"

	"compliance-rag/internal/index"
)

const previewLength = 200

const promptTemplate = `You are a medical compliance expert assistant. Answer the question based ONLY on the provided context from official compliance documents.

CONTEXT:
%s

QUESTION: %s

INSTRUCTIONS:
1. Provide a clear, actionable answer based on the context above
2. Cite specific sources using [Source X] notation
3. If the context mentions specific regulations (e.g., OSHA 1910.1030, HIPAA Privacy Rule), include them
4. If the context doesn't contain enough information to fully answer the question, say so
5. Be concise but thorough
6. Use bullet points for multi-step procedures

ANSWER:`

// BuildPrompt embeds the retrieved chunks, labelled [Source i: file] from 1,
// and the question into the generation prompt.
func BuildPrompt(question string, matches []index.Match) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprintf("[Source %d: %s]\n%s", i+1, m.Metadata.SourceFile, m.Content)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), question)
}

// preview returns the first 200 characters of text, marked when cut.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength]) + "..."
}

func sourcesFrom(matches []index.Match) []Source {
	sources := make([]Source, len(matches))
	for i, m := range matches {
		sources[i] = Source{
			File:    m.Metadata.SourceFile,
			ChunkID: m.ChunkID,
			Preview: preview(m.Content),
		}
	}
	return sources
}

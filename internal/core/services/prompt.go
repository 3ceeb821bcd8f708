package services

import (
	"strings"

	"github.com/custodia-labs/faqbot/internal/core/domain"
)

// BuildPrompt assembles the grounded prompt sent to the generative model.
// Each context passage is labelled with its chunk ID so the model can cite it.
// The result depends only on its arguments.
func BuildPrompt(query string, chunks []domain.ScoredChunk, refusal string) string {
	if refusal == "" {
		refusal = domain.DefaultRefusal
	}

	var b strings.Builder
	b.WriteString("You are a helpful assistant that answers questions using only the provided context.\n\n")
	b.WriteString("Follow these rules:\n")
	b.WriteString("- Use only the information in the context to answer the question.\n")
	b.WriteString("- Cite the label of the passage supporting each fact in square brackets, for example [notes.md#0].\n")
	b.WriteString("- If the answer is not in the context, reply with exactly: ")
	b.WriteString(refusal)
	b.WriteString("\n")
	b.WriteString("- Be concise and factual. Do not speculate.\n\n")

	b.WriteString("Context:\n")
	for _, sc := range chunks {
		if sc.Chunk == nil {
			continue
		}
		b.WriteString("[")
		b.WriteString(sc.Chunk.ID)
		b.WriteString("]\n")
		b.WriteString(strings.TrimSpace(sc.Chunk.Content))
		b.WriteString("\n\n")
	}

	b.WriteString("Question:\n")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n\nAnswer (based only on the context above):\n")
	return b.String()
}

// isRefusal reports whether text is the refusal phrase, ignoring case,
// surrounding whitespace and trailing punctuation.
func isRefusal(text, refusal string) bool {
	return normaliseAnswer(text) == normaliseAnswer(refusal)
}

func normaliseAnswer(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	s = strings.NewReplacer("’", "'", "`", "'").Replace(s)
	return strings.TrimRight(s, ".!")
}

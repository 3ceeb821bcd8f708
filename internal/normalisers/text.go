package normalisers

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/faqbot/internal/core/domain"
)

// PlaintextNormaliser handles plain text content.
// It is registered for */* as the fallback and rejects anything that is
// not valid UTF-8 text.
type PlaintextNormaliser struct{}

func (n *PlaintextNormaliser) Normalise(content []byte, mimeType string) (string, error) {
	if !isText(content) {
		return "", fmt.Errorf("%w: %s is not UTF-8 text", domain.ErrUnsupportedFormat, mimeType)
	}
	return CleanWhitespace(string(content)), nil
}

func (n *PlaintextNormaliser) SupportedTypes() []string {
	return []string{"text/plain", "*/*"}
}

func (n *PlaintextNormaliser) Priority() int {
	return 1
}

// MarkdownNormaliser handles Markdown content.
// Markdown is kept as-is apart from line endings and runs of blank lines;
// indentation is significant so spaces are not collapsed.
type MarkdownNormaliser struct{}

func (n *MarkdownNormaliser) Normalise(content []byte, mimeType string) (string, error) {
	if !isText(content) {
		return "", fmt.Errorf("%w: markdown is not UTF-8 text", domain.ErrUnsupportedFormat)
	}
	text := normaliseLineEndings(string(content))
	text = strings.TrimPrefix(text, "\ufeff")
	text = collapseBlankLines(text)
	return strings.TrimSpace(text), nil
}

func (n *MarkdownNormaliser) SupportedTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (n *MarkdownNormaliser) Priority() int {
	return 50
}

// CleanWhitespace normalizes line endings, collapses repeated spaces,
// trims each line and limits blank runs to one empty line.
func CleanWhitespace(content string) string {
	content = normaliseLineEndings(content)
	content = strings.TrimPrefix(content, "\ufeff")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t'
		}), " ")
	}
	content = strings.Join(lines, "\n")

	return strings.TrimSpace(collapseBlankLines(content))
}

func normaliseLineEndings(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

func collapseBlankLines(content string) string {
	for strings.Contains(content, "\n\n\n") {
		content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
	}
	return content
}

// isText reports whether content is valid UTF-8 without NUL bytes.
func isText(content []byte) bool {
	if !utf8.Valid(content) {
		return false
	}
	for _, b := range content {
		if b == 0 {
			return false
		}
	}
	return true
}

package normalisers

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/custodia-labs/faqbot/internal/core/domain"
)

// HTMLNormaliser extracts the main article text from HTML.
// Readability is tried first; pages it cannot parse fall back to tag stripping.
type HTMLNormaliser struct {
	baseURL *url.URL
}

// NewHTMLNormaliser creates an HTML normaliser.
func NewHTMLNormaliser() *HTMLNormaliser {
	return &HTMLNormaliser{baseURL: &url.URL{Scheme: "file", Path: "/"}}
}

func (n *HTMLNormaliser) Normalise(content []byte, mimeType string) (string, error) {
	if !isText(content) {
		return "", fmt.Errorf("%w: html is not UTF-8 text", domain.ErrUnsupportedFormat)
	}

	article, err := readability.FromReader(bytes.NewReader(content), n.baseURL)
	if err == nil {
		text := CleanWhitespace(article.TextContent)
		if text != "" {
			if title := strings.TrimSpace(article.Title); title != "" && !strings.HasPrefix(text, title) {
				text = "# " + title + "\n\n" + text
			}
			return text, nil
		}
	}

	return CleanWhitespace(stripHTML(string(content))), nil
}

func (n *HTMLNormaliser) SupportedTypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

func (n *HTMLNormaliser) Priority() int {
	return 50
}

// stripHTML removes script/style blocks and tags and decodes entities.
func stripHTML(content string) string {
	content = removeHTMLBlocks(content, "script")
	content = removeHTMLBlocks(content, "style")
	content = stripHTMLTags(content)
	return html.UnescapeString(content)
}

func removeHTMLBlocks(content, tagName string) string {
	result := content
	startTag := "<" + strings.ToLower(tagName)
	endTag := "</" + strings.ToLower(tagName) + ">"

	for {
		lower := strings.ToLower(result)
		startIdx := strings.Index(lower, startTag)
		if startIdx == -1 {
			break
		}

		endIdx := strings.Index(lower[startIdx:], endTag)
		if endIdx == -1 {
			break
		}

		result = result[:startIdx] + result[startIdx+endIdx+len(endTag):]
	}

	return result
}

func stripHTMLTags(content string) string {
	var result strings.Builder
	inTag := false

	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ') // Replace tag with space
		case !inTag:
			result.WriteRune(r)
		}
	}

	return result.String()
}

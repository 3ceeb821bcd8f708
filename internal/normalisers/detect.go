package normalisers

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// extensionTypes covers extensions the platform MIME table often lacks.
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".mdown":    "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
	".rst":      "text/plain",
	".csv":      "text/csv",
	".htm":      "text/html",
	".html":     "text/html",
	".xhtml":    "application/xhtml+xml",
}

// DetectMIMEType picks a MIME type for a file from its extension, falling
// back to content sniffing.
func DetectMIMEType(path string, content []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return stripParams(t)
	}
	return stripParams(http.DetectContentType(content))
}

func stripParams(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = mimeType[:idx]
	}
	return strings.TrimSpace(strings.ToLower(mimeType))
}

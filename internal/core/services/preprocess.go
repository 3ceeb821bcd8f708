package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
	"github.com/custodia-labs/faqbot/internal/core/ports/driving"
	"github.com/custodia-labs/faqbot/internal/normalisers"
)

// Verify interface compliance
var _ driving.PreprocessService = (*PreprocessService)(nil)

// PreprocessService converts arbitrary source files into Markdown documents
// ready for ingestion. Conversion is best-effort: a file that cannot be
// converted is logged and skipped.
type PreprocessService struct {
	registry driven.NormaliserRegistry
	logger   *slog.Logger
}

// NewPreprocessService creates a preprocessing service using registry to
// pick a normaliser per file.
func NewPreprocessService(registry driven.NormaliserRegistry, logger *slog.Logger) *PreprocessService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreprocessService{registry: registry, logger: logger}
}

// Convert empties dst, then writes <stem>.md into it for every non-hidden
// regular file directly inside src. dst must not be src or contain it.
func (s *PreprocessService) Convert(ctx context.Context, src, dst string) (*domain.PreprocessReport, error) {
	if err := checkDistinctDirs(src, dst); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: source directory %s does not exist", domain.ErrNoDocuments, src)
		}
		return nil, fmt.Errorf("read %s: %w", src, err)
	}

	if err := s.cleanDir(dst); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	report := &domain.PreprocessReport{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !entry.Type().IsRegular() {
			report.Skipped++
			continue
		}

		out, err := s.convertFile(filepath.Join(src, name), dst)
		if err != nil {
			s.logger.Warn("failed to convert file", "file", name, "error", err)
			report.Failed = append(report.Failed, name)
			continue
		}
		report.Processed++
		s.logger.Info("converted file", "file", name, "output", out)
	}

	s.logger.Info("preprocessing complete",
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", len(report.Failed),
	)
	return report, nil
}

func (s *PreprocessService) convertFile(path, dst string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	mimeType := normalisers.DetectMIMEType(path, content)
	var text string
	var lastErr error
	for _, n := range s.registry.GetAll(mimeType) {
		text, lastErr = n.Normalise(content, mimeType)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	if text == "" && len(content) > 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, mimeType)
	}

	base := filepath.Base(path)
	out := filepath.Join(dst, strings.TrimSuffix(base, filepath.Ext(base))+".md")
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

// checkDistinctDirs rejects a destination whose cleanup would delete src.
func checkDistinctDirs(src, dst string) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", src, err)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dst, err)
	}
	rel, err := filepath.Rel(absDst, absSrc)
	if err != nil {
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return fmt.Errorf("%w: destination %s would delete source %s", domain.ErrInvalidInput, dst, src)
	}
	return nil
}

// cleanDir creates dir or removes everything inside it
func (s *PreprocessService) cleanDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	s.logger.Info("cleaning destination directory", "dir", dir)
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			s.logger.Warn("failed to delete", "path", p, "error", err)
		}
	}
	return nil
}

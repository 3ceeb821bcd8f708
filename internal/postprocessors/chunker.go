package postprocessors

import (
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// breakLookback bounds how far back from the hard cut a break point is searched.
const breakLookback = 100

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// MaxChunkSize is the maximum bytes per chunk
	MaxChunkSize int

	// Overlap is the byte overlap between consecutive chunks
	Overlap int

	// PreserveSentences tries to break at sentence boundaries
	PreserveSentences bool

	// PreserveParagraphs tries to break at paragraph boundaries
	PreserveParagraphs bool
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize:       1000,
		Overlap:            200,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

// Validate checks 0 <= Overlap < MaxChunkSize.
func (c ChunkConfig) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, c.MaxChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrInvalidInput, c.Overlap)
	}
	if c.Overlap >= c.MaxChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			domain.ErrInvalidInput, c.Overlap, c.MaxChunkSize)
	}
	return nil
}

// Chunker splits content into overlapping chunks.
// This is typically the first processor in the pipeline (Order = 0).
//
// Consecutive chunks share about Overlap bytes (rounded to a rune boundary),
// so dropping the shared prefix of every chunk after the first and
// concatenating rebuilds the input. Chunks never split a UTF-8 sequence.
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
func NewChunker(config ChunkConfig) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// Config returns the chunker configuration.
func (c *Chunker) Config() ChunkConfig {
	return c.config
}

// Process splits content into chunks.
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	position := 0

	for _, chunk := range chunks {
		for span := range c.Spans(chunk.Content) {
			span.Position = position
			span.StartOffset += chunk.StartOffset
			span.EndOffset += chunk.StartOffset
			result = append(result, span)
			position++
		}
	}

	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0 - chunker should be first.
func (c *Chunker) Order() int {
	return 0
}

// Spans lazily yields the chunks of text with offsets relative to text.
//
// Chunks are at most MaxChunkSize bytes; a rune wider than that is emitted
// alone. Consecutive starts are at most MaxChunkSize-Overlap bytes apart
// whenever that window holds two of the widest runes in text. Narrower
// windows widen the step just enough to keep the size bound.
func (c *Chunker) Spans(text string) iter.Seq[driven.Chunk] {
	return func(yield func(driven.Chunk) bool) {
		start, prevEnd, position := 0, 0, 0

		for start < len(text) {
			end := len(text)
			if start+c.config.MaxChunkSize < len(text) {
				end = c.cutPoint(text, start, prevEnd)
			}

			if !yield(driven.Chunk{
				Content:     text[start:end],
				Position:    position,
				StartOffset: start,
				EndOffset:   end,
			}) {
				return
			}
			position++

			if end >= len(text) {
				return
			}
			prevEnd = end
			start = c.nextStart(text, start, end)
		}
	}
}

// cutPoint picks where the chunk beginning at start ends.
// The result lies in (prevEnd, start+MaxChunkSize] unless the rune at
// prevEnd alone is wider than a chunk.
func (c *Chunker) cutPoint(text string, start, prevEnd int) int {
	hard := floorRune(text, start, start+c.config.MaxChunkSize)
	if hard <= prevEnd {
		return prevEnd + runeWidth(text, prevEnd)
	}

	// A break must leave room for the overlap so the next chunk advances.
	minEnd := max(start+c.config.Overlap, prevEnd)
	if hard > minEnd {
		if bp := c.findBreakPoint(text, minEnd, hard); bp > minEnd {
			return bp
		}
	}
	return hard
}

// nextStart returns where the chunk after text[start:end] begins: Overlap
// bytes before end on a rune boundary, past start, and late enough that the
// rune at end still fits in a chunk.
func (c *Chunker) nextStart(text string, start, end int) int {
	next := floorRune(text, start, max(end-c.config.Overlap, start))
	next = max(next, start+runeWidth(text, start))

	if need := end + runeWidth(text, end) - c.config.MaxChunkSize; need > next {
		next = min(ceilRune(text, need), end)
	}
	return next
}

// floorRune moves i back to the nearest rune start, stopping at lo.
func floorRune(text string, lo, i int) int {
	for i > lo && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// ceilRune moves i forward to the nearest rune start.
func ceilRune(text string, i int) int {
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}

func runeWidth(text string, i int) int {
	_, w := utf8.DecodeRuneInString(text[i:])
	return w
}

// findBreakPoint finds a good break point in text[lo:hi].
// Returns -1 when none is found.
func (c *Chunker) findBreakPoint(text string, lo, hi int) int {
	searchStart := max(hi-breakLookback, lo)
	searchContent := text[searchStart:hi]

	// Try to break at paragraph boundary (double newline)
	if c.config.PreserveParagraphs {
		if idx := strings.LastIndex(searchContent, "\n\n"); idx != -1 {
			return searchStart + idx + 2
		}
	}

	if c.config.PreserveSentences {
		sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
		bestIdx := -1

		for _, ender := range sentenceEnders {
			if idx := strings.LastIndex(searchContent, ender); idx != -1 {
				endPos := idx + len(ender)
				if endPos > bestIdx {
					bestIdx = endPos
				}
			}
		}

		if bestIdx > 0 {
			return searchStart + bestIdx
		}
	}

	// Word boundary
	if idx := strings.LastIndexAny(searchContent, " \n\t"); idx != -1 {
		return searchStart + idx + 1
	}

	return -1
}

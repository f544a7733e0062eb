// Package ingestion handles document processing: segmentation, text cleanup,
// metadata extraction, and pipeline orchestration.
package ingestion

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Chunk represents a bounded slice of a source document's text.
type Chunk struct {
	Text   string
	Index  int
	Tokens int
}

// SegmenterConfig holds the size budget for segmentation, in token units.
type SegmenterConfig struct {
	// TargetSize is the target chunk size. No chunk exceeds it except when a
	// single sentence alone does.
	TargetSize int

	// OverlapSize bounds the paragraph overlap seeded between consecutive chunks.
	OverlapSize int

	// MinSize is the minimum size for the final chunk of a document. A
	// trailing buffer below it is discarded.
	MinSize int
}

// Segmenter splits document text into an ordered sequence of chunks that
// respect paragraph and sentence boundaries.
type Segmenter struct {
	config SegmenterConfig
	count  TokenCounter
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// NewSegmenter creates a Segmenter. A nil counter falls back to the
// heuristic word-based count. Invalid budgets are configuration mistakes
// and fail fast.
func NewSegmenter(config SegmenterConfig, counter TokenCounter) (*Segmenter, error) {
	if config.TargetSize <= 0 {
		return nil, fmt.Errorf("segmenter target size must be positive, got %d", config.TargetSize)
	}
	if config.MinSize < 0 {
		return nil, fmt.Errorf("segmenter min size cannot be negative, got %d", config.MinSize)
	}
	if config.OverlapSize < 0 {
		return nil, fmt.Errorf("segmenter overlap cannot be negative, got %d", config.OverlapSize)
	}
	if config.OverlapSize >= config.TargetSize {
		return nil, fmt.Errorf("segmenter overlap (%d) must be less than target size (%d)",
			config.OverlapSize, config.TargetSize)
	}

	if counter == nil {
		counter = HeuristicTokenCount
	}

	return &Segmenter{config: config, count: counter}, nil
}

// Segment splits text into chunks. Paragraphs are the packing unit; a
// paragraph that alone exceeds the target size is split into sentence-level
// sub-chunks instead. Consecutive paragraph chunks share an overlap of
// trailing paragraphs bounded by OverlapSize. Empty or whitespace-only input
// yields no chunks.
func (s *Segmenter) Segment(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	paragraphs := splitParagraphs(text)

	var chunks []Chunk
	var buffer []string
	bufferTokens := 0

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		joined := strings.Join(buffer, "\n\n")
		chunks = append(chunks, Chunk{
			Text:   joined,
			Index:  len(chunks),
			Tokens: s.count(joined),
		})
	}

	for _, paragraph := range paragraphs {
		paraTokens := s.count(paragraph)

		// A paragraph that alone exceeds the target is split by sentences.
		// The current buffer is flushed first and no overlap is seeded into
		// or out of the sentence-level sub-chunks.
		if paraTokens > s.config.TargetSize {
			flush()
			buffer = nil
			bufferTokens = 0

			for _, sub := range s.splitOversizedParagraph(paragraph) {
				chunks = append(chunks, Chunk{
					Text:   sub,
					Index:  len(chunks),
					Tokens: s.count(sub),
				})
			}
			continue
		}

		if bufferTokens+paraTokens > s.config.TargetSize && len(buffer) > 0 {
			flushed := buffer
			flush()
			buffer, bufferTokens = s.overlapSeed(flushed)
		}

		buffer = append(buffer, paragraph)
		bufferTokens += paraTokens
	}

	// The trailing buffer is only worth emitting when it meets the minimum.
	if len(buffer) > 0 {
		joined := strings.Join(buffer, "\n\n")
		if tokens := s.count(joined); tokens >= s.config.MinSize {
			chunks = append(chunks, Chunk{
				Text:   joined,
				Index:  len(chunks),
				Tokens: tokens,
			})
		}
	}

	return chunks
}

// overlapSeed selects the maximal suffix of the flushed paragraphs whose
// cumulative length fits the overlap budget, walking in reverse and stopping
// before exceeding it.
func (s *Segmenter) overlapSeed(flushed []string) ([]string, int) {
	if s.config.OverlapSize <= 0 {
		return nil, 0
	}

	var seed []string
	seedTokens := 0

	for i := len(flushed) - 1; i >= 0; i-- {
		paraTokens := s.count(flushed[i])
		if seedTokens+paraTokens > s.config.OverlapSize {
			break
		}
		seed = append([]string{flushed[i]}, seed...)
		seedTokens += paraTokens
	}

	return seed, seedTokens
}

// splitOversizedParagraph greedily packs sentences into sub-chunks bounded by
// the target size. A single sentence over the target is emitted on its own
// rather than truncated.
func (s *Segmenter) splitOversizedParagraph(paragraph string) []string {
	sentences := splitSentences(paragraph)

	var subs []string
	var current []string
	currentTokens := 0

	for _, sentence := range sentences {
		sentTokens := s.count(sentence)

		if currentTokens+sentTokens > s.config.TargetSize && len(current) > 0 {
			subs = append(subs, strings.Join(current, " "))
			current = nil
			currentTokens = 0
		}

		current = append(current, sentence)
		currentTokens += sentTokens
	}

	if len(current) > 0 {
		subs = append(subs, strings.Join(current, " "))
	}

	return subs
}

// splitParagraphs splits text on blank-line boundaries. Documents without
// blank-line structure fall back to single-newline splitting.
func splitParagraphs(text string) []string {
	parts := paragraphSplit.Split(text, -1)

	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	if len(paragraphs) == 1 {
		lines := strings.Split(text, "\n")
		paragraphs = paragraphs[:0]
		for _, l := range lines {
			if l = strings.TrimSpace(l); l != "" {
				paragraphs = append(paragraphs, l)
			}
		}
	}

	return paragraphs
}

// splitSentences splits text into sentences on . ! ? followed by whitespace
// or end of text. The terminator stays with its sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				if sentence := strings.TrimSpace(current.String()); sentence != "" {
					sentences = append(sentences, sentence)
				}
				current.Reset()
			}
		}
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		sentences = append(sentences, remaining)
	}

	return sentences
}

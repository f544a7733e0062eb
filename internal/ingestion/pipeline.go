package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// PipelineConfig holds configuration for the ingestion pipeline
type PipelineConfig struct {
	// Segmenter budget
	Segmenter SegmenterConfig

	// TokenCounter overrides the default heuristic counter
	TokenCounter TokenCounter

	// DefaultReliability is assigned to documents with no authority signal
	DefaultReliability string

	// DefaultMetadata is included in all chunks unless overridden
	DefaultMetadata map[string]string
}

// PipelineResult holds the result of processing one document
type PipelineResult struct {
	// DocumentID is a unique identifier for this ingestion
	DocumentID uuid.UUID

	// ContentHash is the SHA-256 hash of the cleaned content
	ContentHash string

	// Metadata is the document-level metadata after extraction
	Metadata map[string]string

	// Chunks contains all generated chunks in emission order
	Chunks []Chunk

	// ChunkMetadata holds per-chunk metadata aligned with Chunks
	ChunkMetadata []map[string]string

	// Stats contains processing statistics
	Stats PipelineStats
}

// PipelineStats contains statistics about the pipeline execution
type PipelineStats struct {
	OriginalLength int
	CleanedLength  int
	ChunkCount     int
	TotalTokens    int
	AvgTokens      int
	ProcessingTime time.Duration
}

// Pipeline orchestrates preprocessing, metadata extraction, and segmentation
// for one document at a time. It is safe to share across goroutines: every
// call operates only on its inputs.
type Pipeline struct {
	config    PipelineConfig
	segmenter *Segmenter
	extractor *Extractor
}

// NewPipeline creates an ingestion pipeline. Invalid segmenter budgets fail here.
func NewPipeline(config PipelineConfig) (*Pipeline, error) {
	segmenter, err := NewSegmenter(config.Segmenter, config.TokenCounter)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	return &Pipeline{
		config:    config,
		segmenter: segmenter,
		extractor: NewExtractor(config.DefaultReliability),
	}, nil
}

// Process cleans, tags, and segments one document. Empty content after
// cleanup yields a result with zero chunks, not an error: documents shorter
// than the minimum chunk size are a normal outcome.
func (p *Pipeline) Process(ctx context.Context, content string, metadata map[string]string) (*PipelineResult, error) {
	startTime := time.Now()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	cleaned := CleanText(content)

	documentID := uuid.New()
	contentHash := HashContent(cleaned)

	base := make(map[string]string, len(p.config.DefaultMetadata)+len(metadata))
	for k, v := range p.config.DefaultMetadata {
		base[k] = v
	}
	for k, v := range metadata {
		base[k] = v
	}
	docMeta := p.extractor.Extract(cleaned, base)

	chunks := p.segmenter.Segment(cleaned)

	chunkMeta := make([]map[string]string, len(chunks))
	for i, chunk := range chunks {
		m := make(map[string]string, len(docMeta)+4)
		for k, v := range docMeta {
			m[k] = v
		}
		m["document_id"] = documentID.String()
		m["content_hash"] = contentHash
		m["chunk_index"] = strconv.Itoa(chunk.Index)
		m["chunk_tokens"] = strconv.Itoa(chunk.Tokens)
		chunkMeta[i] = m
	}

	return &PipelineResult{
		DocumentID:    documentID,
		ContentHash:   contentHash,
		Metadata:      docMeta,
		Chunks:        chunks,
		ChunkMetadata: chunkMeta,
		Stats:         calculateStats(content, cleaned, chunks, time.Since(startTime)),
	}, nil
}

func calculateStats(original, cleaned string, chunks []Chunk, processingTime time.Duration) PipelineStats {
	totalTokens := 0
	for _, chunk := range chunks {
		totalTokens += chunk.Tokens
	}

	avgTokens := 0
	if len(chunks) > 0 {
		avgTokens = totalTokens / len(chunks)
	}

	return PipelineStats{
		OriginalLength: len(original),
		CleanedLength:  len(cleaned),
		ChunkCount:     len(chunks),
		TotalTokens:    totalTokens,
		AvgTokens:      avgTokens,
		ProcessingTime: processingTime,
	}
}

// HashContent generates a SHA-256 hash of the content, used both for chunk
// provenance and for document-level deduplication.
func HashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

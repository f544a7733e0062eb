// Package service wires the ingestion and retrieval components into the
// operations the API surface exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ncifuentes/crimrag/internal/config"
	"github.com/ncifuentes/crimrag/internal/embedder"
	"github.com/ncifuentes/crimrag/internal/ingestion"
	"github.com/ncifuentes/crimrag/internal/repository"
	"github.com/ncifuentes/crimrag/internal/vectorstore"
)

// IngestService ingests documents: clean, segment, tag, embed, and store.
type IngestService struct {
	docRepo  repository.DocumentRepository
	jobRepo  repository.IngestJobRepository
	embedder embedder.Embedder
	vectorDB vectorstore.Store
	corpus   *config.Corpus
	pipeline *ingestion.Pipeline
	logger   *slog.Logger
}

// NewIngestService creates an IngestService. The pipeline configuration is
// validated up front.
func NewIngestService(
	docRepo repository.DocumentRepository,
	jobRepo repository.IngestJobRepository,
	emb embedder.Embedder,
	vectorDB vectorstore.Store,
	corpus *config.Corpus,
	pipelineCfg ingestion.PipelineConfig,
	logger *slog.Logger,
) (*IngestService, error) {
	pipeline, err := ingestion.NewPipeline(pipelineCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build ingestion pipeline: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		docRepo:  docRepo,
		jobRepo:  jobRepo,
		embedder: emb,
		vectorDB: vectorDB,
		corpus:   corpus,
		pipeline: pipeline,
		logger:   logger,
	}, nil
}

// IngestRequest describes one document to ingest.
type IngestRequest struct {
	Content   string
	Source    string
	Title     string
	Partition string
	Metadata  map[string]string
}

// IngestResult reports the accepted document and its ingest job.
type IngestResult struct {
	DocumentID uuid.UUID
	JobID      uuid.UUID
	Status     string
	Duplicate  bool
}

// Ingest validates the request, deduplicates by content hash, records the
// document and an ingest job, and processes the content in the background.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.Content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if req.Partition == "" {
		return nil, fmt.Errorf("partition is required")
	}
	if !s.corpus.Has(req.Partition) {
		return nil, fmt.Errorf("unknown partition %q", req.Partition)
	}

	// Source participates in the hash so distinct documents with similar
	// content are not collapsed.
	contentHash := ingestion.HashContent(req.Source + "\n" + req.Content)

	existing, err := s.docRepo.GetByHash(ctx, contentHash)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for duplicate: %w", err)
	}
	if existing != nil {
		s.logger.Info("duplicate document skipped",
			slog.String("document_id", existing.ID.String()),
			slog.String("source", req.Source))
		return &IngestResult{
			DocumentID: existing.ID,
			Status:     existing.Status,
			Duplicate:  true,
		}, nil
	}

	now := time.Now()
	doc := &repository.Document{
		ID:          uuid.New(),
		Source:      req.Source,
		Title:       req.Title,
		Partition:   req.Partition,
		ContentHash: contentHash,
		Status:      repository.DocumentStatusPending,
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if doc.Title == "" {
		doc.Title = "Untitled Document"
	}
	if doc.Source == "" {
		doc.Source = "direct-upload"
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]string{}
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	job := &repository.IngestJob{
		ID:         uuid.New(),
		DocumentID: &doc.ID,
		Source:     doc.Source,
		Partition:  doc.Partition,
		Status:     repository.JobStatusQueued,
		CreatedAt:  now,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create ingest job: %w", err)
	}

	// Process in the background; the caller polls the job for progress.
	go s.process(context.Background(), doc, job, req.Content)

	return &IngestResult{
		DocumentID: doc.ID,
		JobID:      job.ID,
		Status:     repository.DocumentStatusPending,
	}, nil
}

// process runs the full ingestion pipeline for one document.
func (s *IngestService) process(ctx context.Context, doc *repository.Document, job *repository.IngestJob, content string) {
	started := time.Now()
	job.Status = repository.JobStatusRunning
	job.StartedAt = &started
	_ = s.jobRepo.Update(ctx, job)

	doc.Status = repository.DocumentStatusProcessing
	doc.UpdatedAt = started
	_ = s.docRepo.Update(ctx, doc)

	meta := map[string]string{
		"source":    doc.Source,
		"title":     doc.Title,
		"partition": doc.Partition,
	}
	for k, v := range doc.Metadata {
		meta[k] = v
	}

	result, err := s.pipeline.Process(ctx, content, meta)
	if err != nil {
		s.fail(ctx, doc, job, fmt.Sprintf("segmentation failed: %v", err))
		return
	}
	if len(result.Chunks) == 0 {
		s.fail(ctx, doc, job, "document produced no chunks")
		return
	}

	job.ChunksTotal = len(result.Chunks)
	_ = s.jobRepo.Update(ctx, job)

	texts := make([]string, len(result.Chunks))
	for i, chunk := range result.Chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.fail(ctx, doc, job, fmt.Sprintf("embedding failed: %v", err))
		return
	}

	if err := s.vectorDB.EnsureCollection(ctx, doc.Partition, s.embedder.Dimension()); err != nil {
		s.fail(ctx, doc, job, fmt.Sprintf("failed to ensure collection: %v", err))
		return
	}

	points := make([]vectorstore.Point, len(result.Chunks))
	for i, chunk := range result.Chunks {
		// The stored document_id must match the repository record so
		// deletion can find these points later.
		result.ChunkMetadata[i]["document_id"] = doc.ID.String()
		points[i] = vectorstore.Point{
			ID:       uuid.New().String(),
			Text:     chunk.Text,
			Vector:   vectors[i],
			Metadata: result.ChunkMetadata[i],
		}
	}

	if err := s.vectorDB.Upsert(ctx, doc.Partition, points); err != nil {
		s.fail(ctx, doc, job, fmt.Sprintf("vector storage failed: %v", err))
		return
	}

	completed := time.Now()
	doc.Status = repository.DocumentStatusCompleted
	doc.ChunkCount = len(points)
	doc.Reliability = result.Metadata[ingestion.MetaSourceReliability]
	doc.Metadata = result.Metadata
	doc.UpdatedAt = completed
	_ = s.docRepo.Update(ctx, doc)

	job.Status = repository.JobStatusCompleted
	job.ChunksStored = len(points)
	job.CompletedAt = &completed
	_ = s.jobRepo.Update(ctx, job)

	s.logger.Info("document ingested",
		slog.String("document_id", doc.ID.String()),
		slog.String("partition", doc.Partition),
		slog.Int("chunks", len(points)),
		slog.Duration("took", completed.Sub(started)))
}

func (s *IngestService) fail(ctx context.Context, doc *repository.Document, job *repository.IngestJob, msg string) {
	now := time.Now()

	doc.Status = repository.DocumentStatusFailed
	doc.ErrorMessage = msg
	doc.UpdatedAt = now
	_ = s.docRepo.Update(ctx, doc)

	job.Status = repository.JobStatusFailed
	job.ErrorMessage = msg
	job.CompletedAt = &now
	_ = s.jobRepo.Update(ctx, job)

	s.logger.Error("document ingestion failed",
		slog.String("document_id", doc.ID.String()),
		slog.String("error", msg))
}

// GetDocument returns one document record.
func (s *IngestService) GetDocument(ctx context.Context, id uuid.UUID) (*repository.Document, error) {
	return s.docRepo.GetByID(ctx, id)
}

// ListDocuments lists document records with optional partition and status
// filters.
func (s *IngestService) ListDocuments(ctx context.Context, partition, status string, limit, offset int) ([]*repository.Document, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.docRepo.List(ctx, partition, status, limit, offset)
}

// DeleteDocument removes a document's vectors and its record.
func (s *IngestService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.vectorDB.DeleteByDocument(ctx, doc.Partition, doc.ID.String()); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}

	return s.docRepo.Delete(ctx, id)
}

// GetJob returns one ingest job.
func (s *IngestService) GetJob(ctx context.Context, id uuid.UUID) (*repository.IngestJob, error) {
	return s.jobRepo.GetByID(ctx, id)
}

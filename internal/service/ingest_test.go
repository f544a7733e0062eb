package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ncifuentes/crimrag/internal/config"
	"github.com/ncifuentes/crimrag/internal/ingestion"
	"github.com/ncifuentes/crimrag/internal/repository"
	"github.com/ncifuentes/crimrag/internal/vectorstore"
)

type memDocRepo struct {
	mu   sync.Mutex
	docs map[uuid.UUID]repository.Document
}

func newMemDocRepo() *memDocRepo {
	return &memDocRepo{docs: make(map[uuid.UUID]repository.Document)}
}

func (r *memDocRepo) Create(_ context.Context, doc *repository.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = *doc
	return nil
}

func (r *memDocRepo) GetByID(_ context.Context, id uuid.UUID) (*repository.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &doc, nil
}

func (r *memDocRepo) GetByHash(_ context.Context, hash string) (*repository.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.ContentHash == hash {
			d := doc
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memDocRepo) List(_ context.Context, partition, status string, limit, offset int) ([]*repository.Document, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.Document
	for _, doc := range r.docs {
		if partition != "" && doc.Partition != partition {
			continue
		}
		if status != "" && doc.Status != status {
			continue
		}
		d := doc
		out = append(out, &d)
	}
	return out, len(out), nil
}

func (r *memDocRepo) Update(_ context.Context, doc *repository.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.ID]; !ok {
		return repository.ErrNotFound
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *memDocRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

// memJobRepo signals on terminal when a job reaches completed or failed, so
// tests can wait for the background ingestion goroutine.
type memJobRepo struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]repository.IngestJob
	terminal chan string
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{
		jobs:     make(map[uuid.UUID]repository.IngestJob),
		terminal: make(chan string, 8),
	}
}

func (r *memJobRepo) Create(_ context.Context, job *repository.IngestJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memJobRepo) GetByID(_ context.Context, id uuid.UUID) (*repository.IngestJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &job, nil
}

func (r *memJobRepo) List(_ context.Context, status string, limit, offset int) ([]*repository.IngestJob, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.IngestJob
	for _, job := range r.jobs {
		if status != "" && job.Status != status {
			continue
		}
		j := job
		out = append(out, &j)
	}
	return out, len(out), nil
}

func (r *memJobRepo) Update(_ context.Context, job *repository.IngestJob) error {
	r.mu.Lock()
	r.jobs[job.ID] = *job
	r.mu.Unlock()

	if job.Status == repository.JobStatusCompleted || job.Status == repository.JobStatusFailed {
		r.terminal <- job.Status
	}
	return nil
}

func (r *memJobRepo) waitTerminal(t *testing.T) string {
	t.Helper()
	select {
	case status := <-r.terminal:
		return status
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ingestion to finish")
		return ""
	}
}

type memVecStore struct {
	mu          sync.Mutex
	collections map[string]int
	points      map[string][]vectorstore.Point
	results     map[string][]vectorstore.SearchResult
	deleted     []string
	queryErr    error
}

func newMemVecStore() *memVecStore {
	return &memVecStore{
		collections: make(map[string]int),
		points:      make(map[string][]vectorstore.Point),
		results:     make(map[string][]vectorstore.SearchResult),
	}
}

func (s *memVecStore) EnsureCollection(_ context.Context, name string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = dimension
	return nil
}

func (s *memVecStore) ListCollections(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names, nil
}

func (s *memVecStore) Upsert(_ context.Context, collection string, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[collection] = append(s.points[collection], points...)
	return nil
}

func (s *memVecStore) Query(_ context.Context, collection string, _ []float32, n int, _ map[string]string) ([]vectorstore.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	results := s.results[collection]
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

func (s *memVecStore) DeleteByDocument(_ context.Context, collection, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, collection+"/"+documentID)
	return nil
}

func (s *memVecStore) Close() error { return nil }

func (s *memVecStore) storedPoints(collection string) []vectorstore.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]vectorstore.Point(nil), s.points[collection]...)
}

type stubEmbedder struct {
	dim int
	err error
}

func (e *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return make([]float32, e.dim), nil
}

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, e.dim)
	}
	return out, nil
}

func (e *stubEmbedder) Dimension() int    { return e.dim }
func (e *stubEmbedder) ModelName() string { return "stub" }

func testCorpus() *config.Corpus {
	return &config.Corpus{
		Partitions: []config.Partition{
			{Name: "forensic_cases", Priority: 1},
			{Name: "criminology_theory", Priority: 2},
		},
	}
}

func testIngestService(t *testing.T, docRepo *memDocRepo, jobRepo *memJobRepo, store *memVecStore, emb *stubEmbedder) *IngestService {
	t.Helper()
	svc, err := NewIngestService(docRepo, jobRepo, emb, store, testCorpus(), ingestion.PipelineConfig{
		Segmenter: ingestion.SegmenterConfig{TargetSize: 50, OverlapSize: 10, MinSize: 1},
		TokenCounter: func(text string) int {
			return len(strings.Fields(text))
		},
		DefaultReliability: "media",
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewIngestService: %v", err)
	}
	return svc
}

func longContent() string {
	var sb strings.Builder
	for i := 0; i < 6; i++ {
		for j := 0; j < 20; j++ {
			fmt.Fprintf(&sb, "palabra%d_%d ", i, j)
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func TestIngest_EndToEnd(t *testing.T) {
	docRepo := newMemDocRepo()
	jobRepo := newMemJobRepo()
	store := newMemVecStore()
	svc := testIngestService(t, docRepo, jobRepo, store, &stubEmbedder{dim: 4})

	result, err := svc.Ingest(context.Background(), IngestRequest{
		Content:   longContent(),
		Source:    "informe_412.txt",
		Title:     "Informe 412",
		Partition: "forensic_cases",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Duplicate {
		t.Fatal("first ingestion should not be a duplicate")
	}
	if result.Status != repository.DocumentStatusPending {
		t.Errorf("status = %q, expected pending", result.Status)
	}

	if status := jobRepo.waitTerminal(t); status != repository.JobStatusCompleted {
		t.Fatalf("job status = %q, expected completed", status)
	}

	doc, err := docRepo.GetByID(context.Background(), result.DocumentID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Status != repository.DocumentStatusCompleted {
		t.Errorf("document status = %q", doc.Status)
	}
	if doc.ChunkCount == 0 {
		t.Error("expected a positive chunk count")
	}
	if doc.Reliability == "" {
		t.Error("expected a reliability tier on the completed document")
	}

	points := store.storedPoints("forensic_cases")
	if len(points) != doc.ChunkCount {
		t.Fatalf("stored %d points, document records %d chunks", len(points), doc.ChunkCount)
	}
	for i, p := range points {
		if p.Metadata["document_id"] != doc.ID.String() {
			t.Errorf("point %d: document_id = %q, expected %s", i, p.Metadata["document_id"], doc.ID)
		}
		if len(p.Vector) != 4 {
			t.Errorf("point %d: vector dimension = %d", i, len(p.Vector))
		}
	}

	job, err := svc.GetJob(context.Background(), result.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.ChunksStored != doc.ChunkCount {
		t.Errorf("job chunks stored = %d, expected %d", job.ChunksStored, doc.ChunkCount)
	}
	if job.CompletedAt == nil {
		t.Error("expected a completion timestamp")
	}
}

func TestIngest_Duplicate(t *testing.T) {
	docRepo := newMemDocRepo()
	jobRepo := newMemJobRepo()
	store := newMemVecStore()
	svc := testIngestService(t, docRepo, jobRepo, store, &stubEmbedder{dim: 4})

	req := IngestRequest{
		Content:   longContent(),
		Source:    "codigo_penal.txt",
		Partition: "criminology_theory",
	}

	first, err := svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	jobRepo.waitTerminal(t)

	second, err := svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if !second.Duplicate {
		t.Error("expected duplicate result")
	}
	if second.DocumentID != first.DocumentID {
		t.Errorf("duplicate should reference the original document")
	}

	// Same content under a different source is a distinct document.
	req.Source = "codigo_penal_v2.txt"
	third, err := svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("third Ingest: %v", err)
	}
	if third.Duplicate {
		t.Error("different source should not deduplicate")
	}
	jobRepo.waitTerminal(t)
}

func TestIngest_Validation(t *testing.T) {
	svc := testIngestService(t, newMemDocRepo(), newMemJobRepo(), newMemVecStore(), &stubEmbedder{dim: 4})

	tests := []struct {
		name string
		req  IngestRequest
	}{
		{"empty content", IngestRequest{Partition: "forensic_cases"}},
		{"empty partition", IngestRequest{Content: "texto"}},
		{"unknown partition", IngestRequest{Content: "texto", Partition: "astrologia"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Ingest(context.Background(), tt.req); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIngest_NoChunksFailsJob(t *testing.T) {
	docRepo := newMemDocRepo()
	jobRepo := newMemJobRepo()
	svc := testIngestService(t, docRepo, jobRepo, newMemVecStore(), &stubEmbedder{dim: 4})

	// Whitespace passes request validation but cleans down to nothing.
	result, err := svc.Ingest(context.Background(), IngestRequest{
		Content:   "   \n\n   ",
		Source:    "vacio.txt",
		Partition: "forensic_cases",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if status := jobRepo.waitTerminal(t); status != repository.JobStatusFailed {
		t.Fatalf("job status = %q, expected failed", status)
	}

	doc, err := docRepo.GetByID(context.Background(), result.DocumentID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if doc.Status != repository.DocumentStatusFailed {
		t.Errorf("document status = %q, expected failed", doc.Status)
	}
	if doc.ErrorMessage == "" {
		t.Error("expected an error message on the failed document")
	}
}

func TestIngest_EmbeddingFailureFailsJob(t *testing.T) {
	jobRepo := newMemJobRepo()
	svc := testIngestService(t, newMemDocRepo(), jobRepo, newMemVecStore(),
		&stubEmbedder{dim: 4, err: errors.New("model unavailable")})

	_, err := svc.Ingest(context.Background(), IngestRequest{
		Content:   longContent(),
		Source:    "informe.txt",
		Partition: "forensic_cases",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if status := jobRepo.waitTerminal(t); status != repository.JobStatusFailed {
		t.Fatalf("job status = %q, expected failed", status)
	}
}

func TestDeleteDocument_RemovesVectorsFirst(t *testing.T) {
	docRepo := newMemDocRepo()
	store := newMemVecStore()
	svc := testIngestService(t, docRepo, newMemJobRepo(), store, &stubEmbedder{dim: 4})

	doc := &repository.Document{
		ID:        uuid.New(),
		Partition: "forensic_cases",
		Status:    repository.DocumentStatusCompleted,
	}
	if err := docRepo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.DeleteDocument(context.Background(), doc.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	want := "forensic_cases/" + doc.ID.String()
	if len(store.deleted) != 1 || store.deleted[0] != want {
		t.Errorf("vector deletion = %v, expected [%s]", store.deleted, want)
	}
	if _, err := docRepo.GetByID(context.Background(), doc.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("document record should be gone, got %v", err)
	}
}

func TestDeleteDocument_NotFound(t *testing.T) {
	svc := testIngestService(t, newMemDocRepo(), newMemJobRepo(), newMemVecStore(), &stubEmbedder{dim: 4})

	err := svc.DeleteDocument(context.Background(), uuid.New())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

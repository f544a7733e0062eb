// Package repository defines domain models and data access interfaces for
// documents, ingest jobs, and the query audit log.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Document statuses
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

// Document represents an ingested source document. The chunk payloads
// themselves live in the vector store; this record tracks provenance and
// ingestion state.
type Document struct {
	ID           uuid.UUID
	Source       string
	Title        string
	Partition    string
	ContentHash  string
	Reliability  string
	ChunkCount   int
	Status       string
	ErrorMessage string
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Ingest job statuses
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// IngestJob tracks one asynchronous document ingestion.
type IngestJob struct {
	ID           uuid.UUID
	DocumentID   *uuid.UUID
	Source       string
	Partition    string
	Status       string
	ChunksTotal  int
	ChunksStored int
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// QueryLog is one audit record of a retrieval or question-answer call.
type QueryLog struct {
	ID          uuid.UUID
	SessionID   string
	Query       string
	Partitions  []string
	K           int
	UsedMMR     bool
	Reranked    bool
	ResultCount int
	Answered    bool
	DurationMS  int64
	CreatedAt   time.Time
}

// DocumentRepository defines operations for document persistence
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	GetByHash(ctx context.Context, hash string) (*Document, error)
	List(ctx context.Context, partition, status string, limit, offset int) ([]*Document, int, error)
	Update(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// IngestJobRepository defines operations for ingest job persistence
type IngestJobRepository interface {
	Create(ctx context.Context, job *IngestJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*IngestJob, error)
	List(ctx context.Context, status string, limit, offset int) ([]*IngestJob, int, error)
	Update(ctx context.Context, job *IngestJob) error
}

// QueryLogRepository defines operations for the query audit log
type QueryLogRepository interface {
	Create(ctx context.Context, entry *QueryLog) error
	ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*QueryLog, int, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

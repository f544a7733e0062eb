package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ncifuentes/crimrag/internal/repository"
)

// IngestJobRepo implements repository.IngestJobRepository
type IngestJobRepo struct {
	db *DB
}

// NewIngestJobRepo creates a new ingest job repository
func NewIngestJobRepo(db *DB) *IngestJobRepo {
	return &IngestJobRepo{db: db}
}

const ingestJobColumns = `id, document_id, source, partition, status, chunks_total, chunks_stored, error_message, created_at, started_at, completed_at`

// Create creates a new ingest job
func (r *IngestJobRepo) Create(ctx context.Context, job *repository.IngestJob) error {
	query := `
		INSERT INTO ingest_jobs (` + ingestJobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		job.ID, job.DocumentID, job.Source, job.Partition, job.Status,
		job.ChunksTotal, job.ChunksStored, job.ErrorMessage,
		job.CreatedAt, job.StartedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create ingest job: %w", err)
	}
	return nil
}

// GetByID retrieves an ingest job by ID
func (r *IngestJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.IngestJob, error) {
	query := `SELECT ` + ingestJobColumns + ` FROM ingest_jobs WHERE id = $1`

	var job repository.IngestJob
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.DocumentID, &job.Source, &job.Partition, &job.Status,
		&job.ChunksTotal, &job.ChunksStored, &job.ErrorMessage,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ingest job: %w", err)
	}
	return &job, nil
}

// List retrieves ingest jobs with an optional status filter.
func (r *IngestJobRepo) List(ctx context.Context, status string, limit, offset int) ([]*repository.IngestJob, int, error) {
	countQuery := `SELECT COUNT(*) FROM ingest_jobs WHERE 1=1`
	listQuery := `SELECT ` + ingestJobColumns + ` FROM ingest_jobs WHERE 1=1`
	var args []any

	if status != "" {
		args = append(args, status)
		cond := fmt.Sprintf(` AND status = $%d`, len(args))
		countQuery += cond
		listQuery += cond
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ingest jobs: %w", err)
	}

	listQuery += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ingest jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*repository.IngestJob
	for rows.Next() {
		var job repository.IngestJob
		if err := rows.Scan(&job.ID, &job.DocumentID, &job.Source, &job.Partition, &job.Status,
			&job.ChunksTotal, &job.ChunksStored, &job.ErrorMessage,
			&job.CreatedAt, &job.StartedAt, &job.CompletedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan ingest job: %w", err)
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate ingest jobs: %w", err)
	}

	return jobs, total, nil
}

// Update updates an ingest job
func (r *IngestJobRepo) Update(ctx context.Context, job *repository.IngestJob) error {
	query := `
		UPDATE ingest_jobs
		SET document_id = $2, status = $3, chunks_total = $4, chunks_stored = $5,
		    error_message = $6, started_at = $7, completed_at = $8
		WHERE id = $1
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		job.ID, job.DocumentID, job.Status, job.ChunksTotal, job.ChunksStored,
		job.ErrorMessage, job.StartedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update ingest job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.IngestJobRepository = (*IngestJobRepo)(nil)

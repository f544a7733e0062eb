package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ncifuentes/crimrag/internal/repository"
)

// DocumentRepo implements repository.DocumentRepository
type DocumentRepo struct {
	db *DB
}

// NewDocumentRepo creates a new document repository
func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `id, source, title, partition, content_hash, reliability, chunk_count, status, error_message, metadata, created_at, updated_at`

// Create creates a new document record
func (r *DocumentRepo) Create(ctx context.Context, doc *repository.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		doc.ID, doc.Source, doc.Title, doc.Partition, doc.ContentHash,
		doc.Reliability, doc.ChunkCount, doc.Status, doc.ErrorMessage,
		metadataJSON, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document by ID
func (r *DocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return r.scanDocument(ctx, query, id)
}

// GetByHash retrieves a document by content hash. Used to skip re-ingesting
// content the corpus already holds.
func (r *DocumentRepo) GetByHash(ctx context.Context, hash string) (*repository.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE content_hash = $1`
	return r.scanDocument(ctx, query, hash)
}

func (r *DocumentRepo) scanDocument(ctx context.Context, query string, args ...any) (*repository.Document, error) {
	var doc repository.Document
	var metadataJSON []byte

	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&doc.ID, &doc.Source, &doc.Title, &doc.Partition, &doc.ContentHash,
		&doc.Reliability, &doc.ChunkCount, &doc.Status, &doc.ErrorMessage,
		&metadataJSON, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.Metadata = make(map[string]string)
	if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &doc, nil
}

// List retrieves documents with optional partition and status filters.
func (r *DocumentRepo) List(ctx context.Context, partition, status string, limit, offset int) ([]*repository.Document, int, error) {
	countQuery := `SELECT COUNT(*) FROM documents WHERE 1=1`
	listQuery := `SELECT ` + documentColumns + ` FROM documents WHERE 1=1`
	var args []any

	if partition != "" {
		args = append(args, partition)
		cond := fmt.Sprintf(` AND partition = $%d`, len(args))
		countQuery += cond
		listQuery += cond
	}
	if status != "" {
		args = append(args, status)
		cond := fmt.Sprintf(` AND status = $%d`, len(args))
		countQuery += cond
		listQuery += cond
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	listQuery += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*repository.Document
	for rows.Next() {
		var doc repository.Document
		var metadataJSON []byte
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Title, &doc.Partition, &doc.ContentHash,
			&doc.Reliability, &doc.ChunkCount, &doc.Status, &doc.ErrorMessage,
			&metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan document: %w", err)
		}

		doc.Metadata = make(map[string]string)
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, total, nil
}

// Update updates a document record
func (r *DocumentRepo) Update(ctx context.Context, doc *repository.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE documents
		SET source = $2, title = $3, partition = $4, content_hash = $5,
		    reliability = $6, chunk_count = $7, status = $8, error_message = $9,
		    metadata = $10, updated_at = $11
		WHERE id = $1
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		doc.ID, doc.Source, doc.Title, doc.Partition, doc.ContentHash,
		doc.Reliability, doc.ChunkCount, doc.Status, doc.ErrorMessage,
		metadataJSON, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a document record
func (r *DocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Ensure DocumentRepo implements the interface.
var _ repository.DocumentRepository = (*DocumentRepo)(nil)

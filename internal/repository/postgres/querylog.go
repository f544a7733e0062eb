package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ncifuentes/crimrag/internal/repository"
)

// QueryLogRepo implements repository.QueryLogRepository
type QueryLogRepo struct {
	db *DB
}

// NewQueryLogRepo creates a new query log repository
func NewQueryLogRepo(db *DB) *QueryLogRepo {
	return &QueryLogRepo{db: db}
}

const queryLogColumns = `id, session_id, query, partitions, k, used_mmr, reranked, result_count, answered, duration_ms, created_at`

// Create appends one audit record
func (r *QueryLogRepo) Create(ctx context.Context, entry *repository.QueryLog) error {
	query := `
		INSERT INTO query_logs (` + queryLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		entry.ID, entry.SessionID, entry.Query, entry.Partitions, entry.K,
		entry.UsedMMR, entry.Reranked, entry.ResultCount, entry.Answered,
		entry.DurationMS, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create query log: %w", err)
	}
	return nil
}

// ListBySession retrieves audit records for one session, newest first.
func (r *QueryLogRepo) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]*repository.QueryLog, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM query_logs WHERE session_id = $1`, sessionID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count query logs: %w", err)
	}

	query := `
		SELECT ` + queryLogColumns + `
		FROM query_logs
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pool.Query(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list query logs: %w", err)
	}
	defer rows.Close()

	var entries []*repository.QueryLog
	for rows.Next() {
		var entry repository.QueryLog
		if err := rows.Scan(&entry.ID, &entry.SessionID, &entry.Query, &entry.Partitions,
			&entry.K, &entry.UsedMMR, &entry.Reranked, &entry.ResultCount,
			&entry.Answered, &entry.DurationMS, &entry.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan query log: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate query logs: %w", err)
	}

	return entries, total, nil
}

// CountSince reports how many queries ran after the given time.
func (r *QueryLogRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM query_logs WHERE created_at >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count query logs: %w", err)
	}
	return count, nil
}

var _ repository.QueryLogRepository = (*QueryLogRepo)(nil)

// Package vectorstore provides interfaces and implementations for vector
// similarity search across the corpus partitions.
package vectorstore

import (
	"context"
)

// Point represents an embedded chunk ready for storage
type Point struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata map[string]string
}

// SearchResult represents one nearest-neighbor hit. Distance is a
// non-negative dissimilarity: lower means more relevant.
type SearchResult struct {
	ID       string
	Text     string
	Distance float64
	Metadata map[string]string
}

// Store defines the vector-search primitive the ranking engine consumes.
// Partitions are named collections queried independently.
type Store interface {
	// EnsureCollection creates the collection if it does not exist
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// ListCollections returns the names of existing collections
	ListCollections(ctx context.Context) ([]string, error)

	// Upsert inserts or updates points in a collection
	Upsert(ctx context.Context, collection string, points []Point) error

	// Query performs nearest-neighbor search, optionally restricted by an
	// exact-match metadata filter. Results are ordered by ascending distance.
	Query(ctx context.Context, collection string, vector []float32, n int, filter map[string]string) ([]SearchResult, error)

	// DeleteByDocument removes all points belonging to a document
	DeleteByDocument(ctx context.Context, collection, documentID string) error

	// Close releases the underlying connection
	Close() error
}

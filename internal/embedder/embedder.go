// Package embedder provides interfaces and implementations for text embedding.
package embedder

import "context"

// Embedder defines the interface for text embedding services.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple text inputs.
	// Returns a slice of embeddings in the same order as the input texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// knownDimensions maps embedding model names to their vector dimensions, so
// collections can be created without probing the model first.
var knownDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"bge-m3":                 1024,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// DimensionFor returns the embedding dimension for a model, or a
// conservative default for unknown models.
func DimensionFor(model string) int {
	if d, ok := knownDimensions[model]; ok {
		return d
	}
	return 768
}

package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

const (
	defaultOllamaBaseURL    = "http://localhost:11434"
	defaultOllamaModel      = "nomic-embed-text"
	defaultBatchConcurrency = 4
)

// OllamaConfig configures the Ollama embedder. Zero values take the
// defaults above; HTTPClient falls back to http.DefaultClient.
type OllamaConfig struct {
	BaseURL          string
	Model            string
	BatchConcurrency int
	HTTPClient       *http.Client
}

// OllamaEmbedder embeds text through a local Ollama instance.
type OllamaEmbedder struct {
	baseURL          string
	model            string
	dimension        int
	batchConcurrency int
	httpc            *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaEmbedder creates an Ollama embedder. The embedding dimension is
// resolved from the model name so collections can be sized without probing.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	e := &OllamaEmbedder{
		baseURL:          cfg.BaseURL,
		model:            cfg.Model,
		batchConcurrency: cfg.BatchConcurrency,
		httpc:            cfg.HTTPClient,
	}
	if e.baseURL == "" {
		e.baseURL = defaultOllamaBaseURL
	}
	if e.model == "" {
		e.model = defaultOllamaModel
	}
	if e.batchConcurrency <= 0 {
		e.batchConcurrency = defaultBatchConcurrency
	}
	if e.httpc == nil {
		e.httpc = http.DefaultClient
	}
	e.dimension = DimensionFor(e.model)
	return e
}

// Embed generates the embedding vector for one text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(msg))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned from Ollama")
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EmbedBatch embeds texts concurrently, bounded by BatchConcurrency. Results
// keep input order; the first failure aborts the whole batch.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	errs := make([]error, len(texts))
	sem := make(chan struct{}, e.batchConcurrency)

	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func(idx int, t string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}

			results[idx], errs[idx] = e.Embed(ctx, t)
		}(i, text)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("batch embedding failed at index %d: %w", i, err)
		}
	}
	return results, nil
}

// Dimension returns the embedding vector size for the configured model.
func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the configured embedding model.
func (e *OllamaEmbedder) ModelName() string {
	return e.model
}

var _ Embedder = (*OllamaEmbedder)(nil)

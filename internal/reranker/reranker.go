// Package reranker provides cross-encoder style re-scoring of retrieval
// results.
//
// Re-scoring evaluates query-document pairs together rather than
// independently, which improves precision when the top vector hits have
// similar distances. It adds an extra LLM call per query, so it is an
// opt-in configuration.
package reranker

import (
	"context"
	"log/slog"
	"sort"

	"github.com/ncifuentes/crimrag/internal/retriever"
)

// Scorer assigns every candidate text a relevance score for the query.
// Higher scores mean more relevant. The returned slice must be aligned
// with the input texts.
type Scorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Reranker re-orders candidates by cross-encoder relevance, then by
// reliability tier. A Reranker with no scorer, or one that is disabled,
// passes candidates through unchanged.
type Reranker struct {
	scorer      Scorer
	enabled     bool
	defaultTier string
	logger      *slog.Logger
}

// Option is a functional option for configuring a Reranker.
type Option func(*Reranker)

// WithDefaultTier sets the reliability tier assumed for untagged candidates
// during the post-rescore reliability sort.
func WithDefaultTier(tier string) Option {
	return func(r *Reranker) {
		r.defaultTier = tier
	}
}

// WithLogger sets the logger used for scorer-failure warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reranker) {
		r.logger = logger
	}
}

// New creates a Reranker. A nil scorer or enabled=false yields a
// pass-through reranker, which is a valid state rather than an error.
func New(scorer Scorer, enabled bool, opts ...Option) *Reranker {
	r := &Reranker{
		scorer:      scorer,
		enabled:     enabled,
		defaultTier: retriever.TierMedia,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enabled reports whether re-scoring will actually run.
func (r *Reranker) Enabled() bool {
	return r.enabled && r.scorer != nil
}

// Rerank scores every candidate against the query, sorts descending by the
// new score, applies the reliability-tier ordering, and truncates to topK
// (topK <= 0 means no truncation).
//
// Inputs of 0 or 1 candidates, disabled rerankers, and scorer failures all
// return the input list unchanged; scorer failures are logged but never
// propagate to the caller.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []retriever.Candidate, topK int) []retriever.Candidate {
	if !r.Enabled() || len(candidates) <= 1 {
		return candidates
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	scores, err := r.scorer.Score(ctx, query, texts)
	if err != nil {
		r.logger.Warn("rescoring failed, keeping original order",
			slog.String("error", err.Error()))
		return candidates
	}
	if len(scores) != len(candidates) {
		r.logger.Warn("scorer returned wrong score count, keeping original order",
			slog.Int("got", len(scores)),
			slog.Int("want", len(candidates)))
		return candidates
	}

	rescored := make([]retriever.Candidate, len(candidates))
	for i, c := range candidates {
		c.RerankScore = scores[i]
		c.Reranked = true
		rescored[i] = c
	}

	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].RerankScore > rescored[j].RerankScore
	})

	rescored = retriever.SortByReliability(rescored, r.defaultTier)

	if topK > 0 && len(rescored) > topK {
		rescored = rescored[:topK]
	}
	return rescored
}

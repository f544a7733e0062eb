// Package retriever implements multi-partition candidate gathering and
// ranking for retrieval-augmented generation: nearest-neighbor search across
// corpus partitions, optional diversity-aware selection, and reliability-tier
// ordering.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ncifuentes/crimrag/internal/embedder"
	"github.com/ncifuentes/crimrag/internal/vectorstore"
)

// Candidate is a retrieved chunk plus its retrieval-time context.
type Candidate struct {
	// ID is the vector store point identifier.
	ID string

	// Text is the chunk content.
	Text string

	// Metadata is the opaque key-value payload stored with the chunk.
	Metadata map[string]string

	// Distance is the dissimilarity score from nearest-neighbor search
	// (lower = more relevant).
	Distance float64

	// RerankScore is the cross-encoder relevance score (higher = more
	// relevant). Only meaningful when Reranked is true.
	RerankScore float64

	// Reranked reports whether RerankScore has been populated.
	Reranked bool

	// Partition is the logical collection the candidate came from.
	Partition string
}

// Policy holds the retrieval tunables. All thresholds that shape ranking
// behavior live here so callers can adjust them without code changes.
type Policy struct {
	// DefaultK is the result count used when a request does not specify one.
	DefaultK int

	// MaxK caps the per-request result count.
	MaxK int

	// PriorityPartitions lists partitions in preference order. When a
	// request names no partitions, the gatherer takes the first FanOut
	// available partitions from this list.
	PriorityPartitions []string

	// FanOut bounds how many default partitions one query touches.
	FanOut int

	// MMRSkipMargin: diversification is skipped when the candidate pool
	// holds at most k+MMRSkipMargin items, since MMR provides no benefit
	// on pools barely larger than the selection.
	MMRSkipMargin int

	// MMRWindow restricts each MMR step to the top-N candidates by
	// relevance, bounding per-step cost.
	MMRWindow int

	// MMRRecent is the trailing window of selections used for the
	// redundancy term.
	MMRRecent int

	// MMRExtraIters bounds the MMR loop at k+MMRExtraIters iterations.
	MMRExtraIters int

	// Lambda is the diversity weight in [0,1]; higher values favor
	// relevance over diversity.
	Lambda float64

	// DefaultTier is the reliability tier assumed for candidates whose
	// metadata carries no recognized source_reliability value.
	DefaultTier string
}

// DefaultPolicy returns the standard retrieval policy for the criminology
// corpus.
func DefaultPolicy() Policy {
	return Policy{
		DefaultK: 2,
		MaxK:     10,
		PriorityPartitions: []string{
			"forensic_cases",
			"criminology_theory",
			"investigation_techniques",
		},
		FanOut:        1,
		MMRSkipMargin: 2,
		MMRWindow:     20,
		MMRRecent:     3,
		MMRExtraIters: 5,
		Lambda:        0.5,
		DefaultTier:   TierMedia,
	}
}

// Validate checks the policy for configuration mistakes. Called at
// construction time so bad config fails fast instead of corrupting rankings.
func (p Policy) Validate() error {
	if p.DefaultK <= 0 {
		return fmt.Errorf("default k must be positive, got %d", p.DefaultK)
	}
	if p.MaxK <= 0 {
		return fmt.Errorf("max k must be positive, got %d", p.MaxK)
	}
	if p.DefaultK > p.MaxK {
		return fmt.Errorf("default k (%d) must not exceed max k (%d)", p.DefaultK, p.MaxK)
	}
	if p.FanOut <= 0 {
		return fmt.Errorf("fan-out must be positive, got %d", p.FanOut)
	}
	if p.MMRSkipMargin < 0 {
		return fmt.Errorf("mmr skip margin must be non-negative, got %d", p.MMRSkipMargin)
	}
	if p.MMRWindow <= 0 {
		return fmt.Errorf("mmr window must be positive, got %d", p.MMRWindow)
	}
	if p.MMRRecent <= 0 {
		return fmt.Errorf("mmr recent window must be positive, got %d", p.MMRRecent)
	}
	if p.MMRExtraIters < 0 {
		return fmt.Errorf("mmr extra iterations must be non-negative, got %d", p.MMRExtraIters)
	}
	if p.Lambda < 0 || p.Lambda > 1 {
		return fmt.Errorf("lambda must be in [0,1], got %f", p.Lambda)
	}
	if !validTier(p.DefaultTier) {
		return fmt.Errorf("unknown default reliability tier %q", p.DefaultTier)
	}
	return nil
}

// Options configures one retrieval call.
type Options struct {
	// Partitions names the collections to search. Empty means use the
	// policy's priority list.
	Partitions []string

	// K is the number of candidates to return. Zero means the policy
	// default; values are clamped to [1, Policy.MaxK].
	K int

	// Filter restricts the search to points whose metadata matches all
	// given key-value pairs.
	Filter map[string]string

	// UseMMR enables diversity-aware selection instead of plain top-k.
	UseMMR bool
}

// Retriever gathers candidates from the vector store and ranks them.
type Retriever struct {
	store    vectorstore.Store
	embedder embedder.Embedder
	policy   Policy
	logger   *slog.Logger
}

// New creates a Retriever. The policy is validated up front.
func New(store vectorstore.Store, emb embedder.Embedder, policy Policy, logger *slog.Logger) (*Retriever, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval policy: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:    store,
		embedder: emb,
		policy:   policy,
		logger:   logger,
	}, nil
}

// Policy returns a copy of the retriever's active policy.
func (r *Retriever) Policy() Policy {
	return r.policy
}

// Retrieve embeds the query, gathers candidates from the selected
// partitions, and ranks them: MMR selection or plain top-k, then
// reliability-tier ordering. An empty query or an empty candidate pool
// yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) ([]Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return []Candidate{}, nil
	}

	k := r.clampK(opts.K)

	partitions := opts.Partitions
	if len(partitions) == 0 {
		partitions = r.defaultPartitions(ctx)
	}
	if len(partitions) == 0 {
		r.logger.Warn("no partitions available for retrieval")
		return []Candidate{}, nil
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	pool := r.gather(ctx, vector, partitions, k, opts)

	var selected []Candidate
	if opts.UseMMR {
		selected = SelectMMR(pool, k, r.policy)
	} else {
		selected = topKByDistance(pool, k)
	}

	return SortByReliability(selected, r.policy.DefaultTier), nil
}

// clampK resolves the requested result count against the policy bounds.
func (r *Retriever) clampK(k int) int {
	if k <= 0 {
		k = r.policy.DefaultK
	}
	if k > r.policy.MaxK {
		k = r.policy.MaxK
	}
	if k < 1 {
		k = 1
	}
	return k
}

// defaultPartitions picks up to FanOut partitions from the priority list,
// keeping only those that exist in the store. When no priority partition
// exists, the first available collections are used instead. If the store
// cannot be listed, the head of the priority list is used as-is.
func (r *Retriever) defaultPartitions(ctx context.Context) []string {
	available, err := r.store.ListCollections(ctx)
	if err != nil {
		r.logger.Warn("failed to list collections, using priority list head",
			slog.String("error", err.Error()))
		if len(r.policy.PriorityPartitions) <= r.policy.FanOut {
			return r.policy.PriorityPartitions
		}
		return r.policy.PriorityPartitions[:r.policy.FanOut]
	}

	existing := make(map[string]bool, len(available))
	for _, name := range available {
		existing[name] = true
	}

	var selected []string
	for _, name := range r.policy.PriorityPartitions {
		if !existing[name] {
			continue
		}
		selected = append(selected, name)
		if len(selected) >= r.policy.FanOut {
			break
		}
	}

	// No priority partition exists in the store. Rather than return
	// nothing, fall back to whatever the store actually has.
	if len(selected) == 0 {
		for _, name := range available {
			selected = append(selected, name)
			if len(selected) >= r.policy.FanOut {
				break
			}
		}
	}
	return selected
}

// gather queries each partition and merges results into one pool. A failing
// partition is skipped with a warning so one bad collection cannot abort the
// whole retrieval.
func (r *Retriever) gather(ctx context.Context, vector []float32, partitions []string, k int, opts Options) []Candidate {
	fetch := k
	if opts.UseMMR {
		// Extra candidates give the diversifier raw material to choose from.
		fetch = min(k+2, 2*k)
	}

	var pool []Candidate
	for _, partition := range partitions {
		results, err := r.store.Query(ctx, partition, vector, fetch, opts.Filter)
		if err != nil {
			r.logger.Warn("partition query failed, skipping",
				slog.String("partition", partition),
				slog.String("error", err.Error()))
			continue
		}
		for _, res := range results {
			pool = append(pool, Candidate{
				ID:        res.ID,
				Text:      res.Text,
				Metadata:  res.Metadata,
				Distance:  res.Distance,
				Partition: partition,
			})
		}
	}
	return pool
}

// topKByDistance returns the k most relevant candidates sorted by ascending
// distance. The input slice is not modified.
func topKByDistance(pool []Candidate, k int) []Candidate {
	sorted := make([]Candidate, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Distance < sorted[j].Distance
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

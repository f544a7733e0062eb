package retriever

import (
	"math"
	"sort"
)

// SelectMMR picks up to k candidates from the pool using Max Marginal
// Relevance: a greedy selection that trades query relevance against
// redundancy among already-selected items.
//
// Pools of at most k+MMRSkipMargin items skip MMR entirely and fall back to
// plain top-k, since diversification has nothing to choose from at that
// size. Redundancy between two candidates is approximated from the absolute
// difference of their distances, a cheap proxy that avoids carrying every
// candidate's embedding through selection.
//
// The result is in selection order (first selected = most relevant). The
// input pool is not modified.
func SelectMMR(pool []Candidate, k int, policy Policy) []Candidate {
	if k <= 0 || len(pool) == 0 {
		return []Candidate{}
	}

	if len(pool) <= k+policy.MMRSkipMargin {
		return topKByDistance(pool, k)
	}

	// Work on a relevance-ordered copy so the consideration window is the
	// top candidates by distance.
	sorted := make([]Candidate, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Distance < sorted[j].Distance
	})

	window := len(sorted)
	if window > policy.MMRWindow {
		window = policy.MMRWindow
	}

	selected := make([]Candidate, 0, k)
	chosen := make([]bool, len(sorted))

	// Seed with the most relevant candidate.
	selected = append(selected, sorted[0])
	chosen[0] = true

	maxIterations := k + policy.MMRExtraIters
	if maxIterations > len(sorted) {
		maxIterations = len(sorted)
	}

	for iterations := 1; len(selected) < k && iterations < maxIterations; iterations++ {
		bestIdx := -1
		bestScore := math.Inf(-1)

		for i := 0; i < window; i++ {
			if chosen[i] {
				continue
			}

			relevance := similarity(sorted[i].Distance)
			redundancy := maxRecentRedundancy(sorted[i], selected, policy.MMRRecent)

			score := policy.Lambda*relevance - (1-policy.Lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}
		selected = append(selected, sorted[bestIdx])
		chosen[bestIdx] = true
	}

	return selected
}

// similarity converts a non-negative distance into a similarity score
// in (0, 1].
func similarity(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

// maxRecentRedundancy returns the candidate's highest approximate similarity
// to the last `recent` selections. The approximation uses the difference of
// distances as a cheap proxy for pairwise embedding similarity.
func maxRecentRedundancy(c Candidate, selected []Candidate, recent int) float64 {
	start := len(selected) - recent
	if start < 0 {
		start = 0
	}

	maxSim := 0.0
	for _, s := range selected[start:] {
		sim := 1.0 / (1.0 + math.Abs(c.Distance-s.Distance))
		if sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim
}

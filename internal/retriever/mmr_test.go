package retriever

import (
	"fmt"
	"testing"
)

func poolWithDistances(distances []float64) []Candidate {
	pool := make([]Candidate, len(distances))
	for i, d := range distances {
		pool[i] = Candidate{
			ID:       fmt.Sprintf("c%d", i),
			Distance: d,
		}
	}
	return pool
}

func TestSelectMMRSmallPoolFallsBackToTopK(t *testing.T) {
	policy := DefaultPolicy()

	// Pool of 4 with k=2 and skip margin 2: 4 <= 2+2, so plain top-k.
	pool := poolWithDistances([]float64{0.9, 0.1, 0.5, 0.3})

	got := SelectMMR(pool, 2, policy)

	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].ID != "c1" || got[1].ID != "c3" {
		t.Errorf("got [%s %s], want [c1 c3] (two smallest distances)", got[0].ID, got[1].ID)
	}
}

func TestSelectMMRSeedsWithMostRelevant(t *testing.T) {
	policy := DefaultPolicy()

	pool := poolWithDistances([]float64{0.8, 0.05, 0.4, 0.6, 0.2, 0.9, 0.7})

	got := SelectMMR(pool, 3, policy)

	if len(got) == 0 {
		t.Fatal("got empty selection")
	}
	if got[0].ID != "c1" {
		t.Errorf("first selected = %s, want c1 (lowest distance)", got[0].ID)
	}
}

func TestSelectMMRBounds(t *testing.T) {
	policy := DefaultPolicy()

	pool := poolWithDistances([]float64{0.1, 0.15, 0.2, 0.25, 0.3, 0.35, 0.4, 0.45, 0.5, 0.55})

	for k := 1; k <= 5; k++ {
		got := SelectMMR(pool, k, policy)

		if len(got) > k {
			t.Errorf("k=%d: returned %d candidates", k, len(got))
		}

		inPool := make(map[string]bool, len(pool))
		for _, c := range pool {
			inPool[c.ID] = true
		}
		seen := make(map[string]bool, len(got))
		for _, c := range got {
			if !inPool[c.ID] {
				t.Errorf("k=%d: candidate %s not in input pool", k, c.ID)
			}
			if seen[c.ID] {
				t.Errorf("k=%d: candidate %s selected twice", k, c.ID)
			}
			seen[c.ID] = true
		}
	}
}

func TestSelectMMRPrefersDiverseDistances(t *testing.T) {
	policy := DefaultPolicy()
	policy.Lambda = 0.5

	// Candidates c1..c3 cluster tightly around the seed's distance. With
	// equal relevance/diversity weighting their redundancy penalty outweighs
	// their relevance edge, so the second slot goes to a candidate far from
	// the seed in distance space rather than to a near-duplicate.
	pool := poolWithDistances([]float64{0.10, 0.101, 0.102, 0.103, 0.50, 0.9, 0.95})

	got := SelectMMR(pool, 2, policy)

	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].ID != "c0" {
		t.Errorf("seed = %s, want c0", got[0].ID)
	}
	for _, dup := range []string{"c1", "c2", "c3"} {
		if got[1].ID == dup {
			t.Errorf("second pick = %s, a near-duplicate of the seed", got[1].ID)
		}
	}
}

func TestSelectMMRFullRelevanceWeightMatchesTopK(t *testing.T) {
	policy := DefaultPolicy()
	policy.Lambda = 1.0

	pool := poolWithDistances([]float64{0.7, 0.1, 0.3, 0.5, 0.2, 0.9, 0.4, 0.6})

	got := SelectMMR(pool, 3, policy)

	want := []string{"c1", "c4", "c2"}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestSelectMMREmptyAndZeroK(t *testing.T) {
	policy := DefaultPolicy()

	if got := SelectMMR(nil, 3, policy); len(got) != 0 {
		t.Errorf("nil pool: got %d candidates, want 0", len(got))
	}
	if got := SelectMMR(poolWithDistances([]float64{0.1, 0.2}), 0, policy); len(got) != 0 {
		t.Errorf("k=0: got %d candidates, want 0", len(got))
	}
}

func TestSelectMMRDoesNotMutatePool(t *testing.T) {
	policy := DefaultPolicy()

	pool := poolWithDistances([]float64{0.9, 0.1, 0.5, 0.3, 0.7, 0.2, 0.6, 0.4})
	original := make([]string, len(pool))
	for i, c := range pool {
		original[i] = c.ID
	}

	SelectMMR(pool, 3, policy)

	for i, id := range original {
		if pool[i].ID != id {
			t.Errorf("pool position %d mutated: got %s, want %s", i, pool[i].ID, id)
		}
	}
}

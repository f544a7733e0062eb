package retriever

// Reliability tiers, from most to least trusted.
const (
	TierAlta  = "alta"
	TierMedia = "media"
	TierBaja  = "baja"
)

// MetadataReliabilityKey is the metadata field carrying a candidate's
// reliability tier.
const MetadataReliabilityKey = "source_reliability"

func validTier(tier string) bool {
	switch tier {
	case TierAlta, TierMedia, TierBaja:
		return true
	}
	return false
}

// SortByReliability partitions candidates into the three reliability tiers
// and concatenates them alta, media, baja. Candidates with a missing or
// unrecognized tier are treated as defaultTier. Relative order within each
// tier is preserved, so a relevance-ranked input stays relevance-ranked
// inside every tier. The input slice is not modified.
func SortByReliability(candidates []Candidate, defaultTier string) []Candidate {
	if !validTier(defaultTier) {
		defaultTier = TierMedia
	}

	var alta, media, baja []Candidate
	for _, c := range candidates {
		tier := c.Metadata[MetadataReliabilityKey]
		if !validTier(tier) {
			tier = defaultTier
		}
		switch tier {
		case TierAlta:
			alta = append(alta, c)
		case TierMedia:
			media = append(media, c)
		case TierBaja:
			baja = append(baja, c)
		}
	}

	out := make([]Candidate, 0, len(candidates))
	out = append(out, alta...)
	out = append(out, media...)
	out = append(out, baja...)
	return out
}

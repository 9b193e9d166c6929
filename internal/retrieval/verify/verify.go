// Package verify counts lexical corroboration between results and turns it,
// together with source standing and track record, into a 0-100 confidence.
package verify

import (
	"tourism-retrieval/internal/common/textutil"
	"tourism-retrieval/internal/models"
)

const (
	baseConfidence  = 50.0
	verifiedBonus   = 20.0
	crossRefWeight  = 10.0
	maxCrossRefGain = 30.0

	MinConfidence = 0.0
	MaxConfidence = 100.0
)

var tierBonus = map[models.ReliabilityTier]float64{
	models.TierHigh:   15,
	models.TierMedium: 10,
	models.TierLow:    0,
}

// ReliabilityReader exposes the historical reliability of a source. ok is
// false when the source has no recorded history yet.
type ReliabilityReader interface {
	Get(source string) (value float64, ok bool)
}

type Verifier struct {
	history ReliabilityReader
}

func New(history ReliabilityReader) *Verifier {
	return &Verifier{history: history}
}

// Score returns a copy of results with CrossReferences and Confidence filled
// in. boost is the learning-derived relative adjustment (0 to 0.3) and is
// applied after blending with the source's history.
//
// A source with no recorded history keeps its heuristic score unblended
// rather than being averaged with a default of 50; the 50 only seeds the
// reliability table once the source is first ranked.
func (v *Verifier) Score(results []models.SearchResult, boost float64) []models.SearchResult {
	refs := CrossReferences(results)
	scored := make([]models.SearchResult, len(results))
	for i, r := range results {
		r.CrossReferences = refs[i]
		conf := HeuristicConfidence(r)
		if v.history != nil {
			if hist, ok := v.history.Get(r.Source); ok {
				conf = (conf + hist) / 2
			}
		}
		r.Confidence = Clamp(conf * (1 + boost))
		scored[i] = r
	}
	return scored
}

// HeuristicConfidence is the unblended score of a result with its
// CrossReferences already set.
func HeuristicConfidence(r models.SearchResult) float64 {
	conf := baseConfidence
	if r.Verified {
		conf += verifiedBonus
	}
	conf += tierBonus[r.Reliability]
	gain := float64(r.CrossReferences) * crossRefWeight
	if gain > maxCrossRefGain {
		gain = maxCrossRefGain
	}
	return Clamp(conf + gain)
}

// CrossReferences counts, for every result, how many other results mention
// the leading token of its title in their own title or snippet.
func CrossReferences(results []models.SearchResult) []int {
	type tokenSet map[string]struct{}
	sets := make([]tokenSet, len(results))
	leads := make([]string, len(results))
	for i, r := range results {
		set := make(tokenSet)
		for _, t := range textutil.Tokens(r.Title) {
			set[t] = struct{}{}
		}
		for _, t := range textutil.Tokens(r.Snippet) {
			set[t] = struct{}{}
		}
		sets[i] = set
		leads[i] = textutil.LeadingToken(r.Title)
	}

	refs := make([]int, len(results))
	for i, lead := range leads {
		if lead == "" {
			continue
		}
		for j := range results {
			if i == j {
				continue
			}
			if _, ok := sets[j][lead]; ok {
				refs[i]++
			}
		}
	}
	return refs
}

func Clamp(v float64) float64 {
	switch {
	case v < MinConfidence:
		return MinConfidence
	case v > MaxConfidence:
		return MaxConfidence
	}
	return v
}

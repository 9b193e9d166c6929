// Package rank orders scored results and keeps each source's historical
// reliability as an exponential moving average of the confidences it earns.
package rank

import (
	"sort"
	"sync"

	"tourism-retrieval/internal/common/metrics"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/verify"
)

// DefaultReliability is assumed for a source with no history.
const DefaultReliability = 50.0

// ReliabilityTable is safe for concurrent use. Two searches updating the same
// source at once may lose one of the updates; the map itself stays consistent.
type ReliabilityTable struct {
	mu     sync.RWMutex
	scores map[string]float64
}

func NewReliabilityTable() *ReliabilityTable {
	return &ReliabilityTable{scores: make(map[string]float64)}
}

// Get implements verify.ReliabilityReader.
func (t *ReliabilityTable) Get(source string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.scores[source]
	return v, ok
}

// Value returns the reliability of source, DefaultReliability if unknown.
func (t *ReliabilityTable) Value(source string) float64 {
	if v, ok := t.Get(source); ok {
		return v
	}
	return DefaultReliability
}

// Update folds confidence into the source's reliability with weight 0.5 and
// returns the new value.
func (t *ReliabilityTable) Update(source string, confidence float64) float64 {
	t.mu.Lock()
	prev, ok := t.scores[source]
	if !ok {
		prev = DefaultReliability
	}
	next := verify.Clamp((prev + verify.Clamp(confidence)) / 2)
	t.scores[source] = next
	t.mu.Unlock()

	metrics.SourceReliability.WithLabelValues(source).Set(next)
	return next
}

func (t *ReliabilityTable) Snapshot() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.scores))
	for k, v := range t.scores {
		out[k] = v
	}
	return out
}

func (t *ReliabilityTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.scores)
}

// Sort orders results by confidence, highest first. Equal confidences keep
// their input order.
func Sort(results []models.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
}

type Ranker struct {
	table *ReliabilityTable
}

func NewRanker(table *ReliabilityTable) *Ranker {
	return &Ranker{table: table}
}

// Rank sorts results in place and then feeds every result's confidence back
// into its source's reliability, in ranked order.
func (r *Ranker) Rank(results []models.SearchResult) []models.SearchResult {
	Sort(results)
	for _, res := range results {
		r.table.Update(res.Source, res.Confidence)
	}
	return results
}

// Package hybrid blends collaborative and content similarity into one ranking.
package hybrid

import (
	"math"

	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/internal/domain/similarity"
)

// DefaultAlpha weighs both signals equally.
const DefaultAlpha = 0.5

// Merge combines the two lists as alpha*collab + (1-alpha)*content. A team
// missing from one list contributes 0 for it. alpha is clamped to [0,1].
// The result is sorted by combined score desc, ties by id asc.
func Merge(collab, content []similarity.Score, alpha float64) []similarity.Score {
	if math.IsNaN(alpha) {
		alpha = DefaultAlpha
	}
	alpha = math.Max(0, math.Min(1, alpha))

	combined := make(map[model.TeamID]float64, len(collab)+len(content))
	order := make([]model.TeamID, 0, len(collab)+len(content))
	add := func(id model.TeamID, v float64) {
		if _, ok := combined[id]; !ok {
			order = append(order, id)
		}
		combined[id] += v
	}
	for _, s := range collab {
		add(s.TeamID, alpha*s.Score)
	}
	for _, s := range content {
		add(s.TeamID, (1-alpha)*s.Score)
	}

	out := make([]similarity.Score, 0, len(order))
	for _, id := range order {
		out = append(out, similarity.Score{TeamID: id, Score: combined[id]})
	}
	similarity.Sort(out)
	return out
}

// Package similarity scores candidate opponents against a target team.
//
// Collaborative scores compare how two teams fared against the same opponents.
// Content scores compare rating and experience-weighted form, grouped by
// preferred-venue overlap.
package similarity

import (
	"math"
	"sort"

	"github.com/okian/futsalrank/internal/domain/model"
)

// Score is a candidate with its similarity to the target.
type Score struct {
	TeamID model.TeamID
	Score  float64
}

// slotWidth is the number of features per opponent: played, win rate, average goal diff.
const slotWidth = 3

// record accumulates head-to-head results of one team against one opponent.
type record struct {
	games   int
	wins    float64 // draws count as half
	goalDif int
}

// history indexes completed competitive results by team, then opponent.
type history map[model.TeamID]map[model.TeamID]*record

func buildHistory(matches []model.Match) history {
	h := make(history)
	add := func(team, opp model.TeamID, gf, ga int) {
		byOpp, ok := h[team]
		if !ok {
			byOpp = make(map[model.TeamID]*record)
			h[team] = byOpp
		}
		r, ok := byOpp[opp]
		if !ok {
			r = &record{}
			byOpp[opp] = r
		}
		r.games++
		r.goalDif += gf - ga
		switch {
		case gf > ga:
			r.wins++
		case gf == ga:
			r.wins += 0.5
		}
	}
	for i := range matches {
		m := &matches[i]
		if m.Type != model.MatchCompetitive || !m.Completed || m.GoalsA == nil || m.GoalsB == nil {
			continue
		}
		if m.TeamA == m.TeamB {
			continue
		}
		add(m.TeamA, m.TeamB, *m.GoalsA, *m.GoalsB)
		add(m.TeamB, m.TeamA, *m.GoalsB, *m.GoalsA)
	}
	return h
}

// universe returns the sorted union of opponents faced by a or b.
func (h history) universe(a, b model.TeamID) []model.TeamID {
	set := make(map[model.TeamID]struct{}, len(h[a])+len(h[b]))
	for o := range h[a] {
		set[o] = struct{}{}
	}
	for o := range h[b] {
		set[o] = struct{}{}
	}
	out := make([]model.TeamID, 0, len(set))
	for o := range set {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// vector builds team's feature vector over opponents. The slot for the team
// itself stays zero so vectors for the same universe line up.
func (h history) vector(team model.TeamID, opponents []model.TeamID) []float64 {
	v := make([]float64, len(opponents)*slotWidth)
	byOpp := h[team]
	for i, o := range opponents {
		if o == team {
			continue
		}
		r, ok := byOpp[o]
		if !ok || r.games == 0 {
			continue
		}
		v[i*slotWidth] = 1
		v[i*slotWidth+1] = r.wins / float64(r.games)
		v[i*slotWidth+2] = float64(r.goalDif) / float64(r.games)
	}
	return v
}

// Collaborative ranks candidates by cosine similarity of their head-to-head
// vectors with the target's. Only completed competitive matches count.
// topN <= 0 returns every candidate.
func Collaborative(target model.TeamID, candidates []model.TeamID, matches []model.Match, topN int) []Score {
	h := buildHistory(matches)
	out := make([]Score, 0, len(candidates))
	seen := make(map[model.TeamID]struct{}, len(candidates))
	for _, c := range candidates {
		if c == target {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		opps := h.universe(target, c)
		score := Cosine(h.vector(target, opps), h.vector(c, opps))
		out = append(out, Score{TeamID: c, Score: score})
	}
	Sort(out)
	return truncate(out, topN)
}

// Content ranks candidates by 1/(1+d) where d is the Euclidean distance over
// (rating, weighted score). Candidates sharing a preferred venue with the
// target come first. topN <= 0 returns every candidate.
func Content(target *model.Team, candidates []*model.Team, topN int) []Score {
	if target == nil {
		return []Score{}
	}
	tw := target.WeightedScore()
	overlap := make([]Score, 0, len(candidates))
	rest := make([]Score, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || c.ID == target.ID {
			continue
		}
		d := math.Hypot(target.Rating-c.Rating, tw-c.WeightedScore())
		s := Score{TeamID: c.ID, Score: 1 / (1 + d)}
		if target.SharesVenue(c) {
			overlap = append(overlap, s)
		} else {
			rest = append(rest, s)
		}
	}
	Sort(overlap)
	Sort(rest)
	return truncate(append(overlap, rest...), topN)
}

// Cosine returns the cosine similarity of a and b, 0 when either has zero norm
// or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Sort orders s by score desc, then team id asc.
func Sort(s []Score) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].TeamID < s[j].TeamID
	})
}

func truncate(s []Score, n int) []Score {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

package service

import (
	"context"
	"math"

	"github.com/okian/futsalrank/internal/domain/hybrid"
	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/internal/domain/similarity"
	"github.com/okian/futsalrank/pkg/logger"
	"github.com/okian/futsalrank/pkg/metrics"
)

// Recommendation is one suggested opponent.
type Recommendation struct {
	TeamID              model.TeamID `json:"teamId"`
	TeamName            string       `json:"teamName"`
	Rating              float64      `json:"rating"`
	WinRate             float64      `json:"winRate"`
	WeightedScore       float64      `json:"weightedScore"`
	PreferredVenueNames []string     `json:"preferredVenueNames"`
	SimilarityScore     float64      `json:"similarityScore"`
	RecentlyRejected    bool         `json:"recentlyRejected"`
}

// RecommendOpponents ranks opponents for teamID by the hybrid of collaborative
// and content similarity. topN <= 0 uses the configured limit. Candidates that
// recently rejected the team stay in the list and are flagged.
func (s *Service) RecommendOpponents(ctx context.Context, teamID model.TeamID, topN int) (recs []Recommendation, err error) {
	const op = "service.RecommendOpponents"
	start := s.clock.Now()
	defer func() { s.observe(ctx, op, start, err) }()

	if teamID == "" {
		return nil, model.Invalidf(op, "team id is required")
	}
	target, err := s.store.LoadTeam(ctx, teamID)
	if err != nil {
		return nil, model.Wrap(op, err)
	}
	recs, err = s.recommend(ctx, target, topN)
	if err != nil {
		return nil, model.Wrap(op, err)
	}
	metrics.RecordRecommendationServed()
	s.logger.Debug(ctx, "recommendations served",
		logger.String("teamID", teamID),
		logger.Int("count", len(recs)),
	)
	return recs, nil
}

// recommend builds the ranked list for target, leaving out exclude.
func (s *Service) recommend(ctx context.Context, target *model.Team, topN int, exclude ...model.TeamID) ([]Recommendation, error) {
	if topN <= 0 {
		topN = s.recommendLimit
	}
	candidates, err := s.store.ListTeams(ctx, model.TeamFilter{Exclude: append([]model.TeamID{target.ID}, exclude...)})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []Recommendation{}, nil
	}
	history, err := s.store.ListCompletedMatches(ctx, model.MatchCompetitive)
	if err != nil {
		return nil, err
	}

	ids := make([]model.TeamID, len(candidates))
	byID := make(map[model.TeamID]*model.Team, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
		byID[c.ID] = c
	}

	collab := similarity.Collaborative(target.ID, ids, history, s.candidatePool)
	content := similarity.Content(target, candidates, s.candidatePool)
	ranked := hybrid.Merge(collab, content, s.alpha)
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	venueNames := make(map[model.VenueID]string)
	out := make([]Recommendation, 0, len(ranked))
	for _, sc := range ranked {
		c := byID[sc.TeamID]
		blocked, err := s.ledger.IsBlocked(ctx, c.ID, target.ID)
		if err != nil {
			return nil, err
		}
		names, err := s.venueNames(ctx, c.PreferredVenues, venueNames)
		if err != nil {
			return nil, err
		}
		out = append(out, Recommendation{
			TeamID:              c.ID,
			TeamName:            c.Name,
			Rating:              c.Rating,
			WinRate:             roundTo(c.WinRate(), 2),
			WeightedScore:       c.WeightedScore(),
			PreferredVenueNames: names,
			SimilarityScore:     roundTo(sc.Score, 3),
			RecentlyRejected:    blocked,
		})
	}
	return out, nil
}

// venueNames resolves ids to names, caching lookups in seen. Unknown venues
// are reported by id.
func (s *Service) venueNames(ctx context.Context, ids []model.VenueID, seen map[model.VenueID]string) ([]string, error) {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name, ok := seen[id]
		if !ok {
			v, err := s.store.LoadVenue(ctx, id)
			switch {
			case err == nil:
				name = v.Name
			case model.KindOf(err) == model.ErrNotFound:
				name = id
			default:
				return nil, err
			}
			seen[id] = name
		}
		names = append(names, name)
	}
	return names, nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

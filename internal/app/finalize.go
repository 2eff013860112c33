package service

import (
	"context"
	"fmt"

	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/internal/validation"
	"github.com/okian/futsalrank/pkg/logger"
	"github.com/okian/futsalrank/pkg/metrics"
)

// FinalizeInput records the final score of a scheduled match. ActorID is the
// account submitting it and must own the venue.
type FinalizeInput struct {
	MatchID model.MatchID `validate:"required"`
	ActorID string        `validate:"required"`
	GoalsA  int           `validate:"gte=0"`
	GoalsB  int           `validate:"gte=0"`
}

// FinalizeResult reports rating movement. Friendlies leave ratings untouched
// and report zero deltas.
type FinalizeResult struct {
	DeltaA     float64 `json:"deltaA"`
	DeltaB     float64 `json:"deltaB"`
	NewRatingA float64 `json:"newRatingA"`
	NewRatingB float64 `json:"newRatingB"`
}

// FinalizeMatch completes a scheduled match exactly once, applies the rating
// update for competitive matches and clears cooldowns between the pair.
func (s *Service) FinalizeMatch(ctx context.Context, in FinalizeInput) (res FinalizeResult, err error) {
	const op = "service.FinalizeMatch"
	start := s.clock.Now()
	defer func() { s.observe(ctx, op, start, err) }()

	if err := validation.Struct(op, in); err != nil {
		return FinalizeResult{}, err
	}
	m, unlock, err := s.lockMatch(ctx, op, in.MatchID)
	if err != nil {
		return FinalizeResult{}, err
	}
	defer unlock()

	if m.Completed || m.Status != model.StatusScheduled || m.VenueID == "" {
		return FinalizeResult{}, model.WrapKind(op, model.ErrPreconditionFailed, fmt.Errorf("match is %s, not scheduled", m.Status))
	}
	venue, err := s.store.LoadVenue(ctx, m.VenueID)
	if err != nil {
		return FinalizeResult{}, model.Wrap(op, err)
	}
	if venue.OwnerID != in.ActorID {
		return FinalizeResult{}, model.WrapKind(op, model.ErrUnauthorized, fmt.Errorf("%q does not own venue %s", in.ActorID, venue.ID))
	}

	a, err := s.store.LoadTeam(ctx, m.TeamA)
	if err != nil {
		return FinalizeResult{}, model.Wrap(op, err)
	}
	b, err := s.store.LoadTeam(ctx, m.TeamB)
	if err != nil {
		return FinalizeResult{}, model.Wrap(op, err)
	}

	res = FinalizeResult{NewRatingA: a.Rating, NewRatingB: b.Rating}
	var changed []*model.Team
	if m.Type == model.MatchCompetitive {
		r, err := s.updater.Apply(a, b, in.GoalsA, in.GoalsB)
		if err != nil {
			return FinalizeResult{}, model.Wrap(op, err)
		}
		changed = []*model.Team{a, b}
		res = FinalizeResult{DeltaA: r.DeltaA, DeltaB: r.DeltaB, NewRatingA: r.NewRatingA, NewRatingB: r.NewRatingB}
	}

	goalsA, goalsB := in.GoalsA, in.GoalsB
	m.GoalsA, m.GoalsB = &goalsA, &goalsB
	m.Completed = true
	m.Status = model.StatusCompleted
	m.CompletedAt = s.clock.Now()
	// The match and the ratings land together so a failed write can be retried
	// without applying the result twice.
	if err := s.store.CommitResult(ctx, m, changed...); err != nil {
		return FinalizeResult{}, model.Wrap(op, err)
	}
	if len(changed) > 0 {
		s.leaderboard.Set(ctx, a.ID, a.Rating)
		s.leaderboard.Set(ctx, b.ID, b.Rating)
		metrics.RecordRatingApplied(res.DeltaA, res.DeltaB)
	}

	cleared, err := s.ledger.ClearPair(ctx, m.TeamA, m.TeamB)
	if err != nil {
		return FinalizeResult{}, model.Wrap(op, err)
	}

	s.logger.Info(ctx, "match finalized",
		logger.String("matchID", m.ID),
		logger.String("type", string(m.Type)),
		logger.Int("goalsA", goalsA),
		logger.Int("goalsB", goalsB),
		logger.Float64("deltaA", res.DeltaA),
		logger.Float64("deltaB", res.DeltaB),
		logger.Int("cooldownsCleared", cleared),
	)
	s.publish(ctx, model.Notification{
		Kind:       model.NotifyMatchCompleted,
		MatchID:    m.ID,
		Recipients: []string{m.TeamA, m.TeamB},
		Payload: map[string]any{
			"goalsA": goalsA,
			"goalsB": goalsB,
			"deltaA": res.DeltaA,
			"deltaB": res.DeltaB,
		},
	})
	return res, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/okian/futsalrank/internal/adapters/repository"
	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/internal/validation"
	"github.com/okian/futsalrank/pkg/logger"
)

// RegisterTeamInput creates a team. ID is generated when empty and may not
// contain ':', which separates the parts of lock keys.
type RegisterTeamInput struct {
	ID              model.TeamID    `validate:"omitempty,excludes=:"`
	Name            string          `validate:"required,max=100"`
	OwnerID         string          `validate:"required"`
	PreferredVenues []model.VenueID `validate:"min=2,unique,dive,required"`
	HomeVenue       model.VenueID
}

// PreferencesInput replaces a team's venue preferences.
type PreferencesInput struct {
	TeamID          model.TeamID    `validate:"required"`
	ActorID         string          `validate:"required"`
	PreferredVenues []model.VenueID `validate:"min=2,unique,dive,required"`
	HomeVenue       model.VenueID
}

// RegisterTeam stores a new team with the default rating and ranks it.
func (s *Service) RegisterTeam(ctx context.Context, in RegisterTeamInput) (team *model.Team, err error) {
	const op = "service.RegisterTeam"
	start := s.clock.Now()
	defer func() { s.observe(ctx, op, start, err) }()

	if err := validation.Struct(op, in); err != nil {
		return nil, err
	}
	if err := s.checkVenues(ctx, op, in.PreferredVenues, in.HomeVenue); err != nil {
		return nil, err
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	unlock, err := s.lock(ctx, op, teamKey(in.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.store.LoadTeam(ctx, in.ID); err == nil {
		return nil, model.WrapKind(op, model.ErrConflict, fmt.Errorf("team %q already exists", in.ID))
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, model.Wrap(op, err)
	}

	team = &model.Team{
		ID:              in.ID,
		Name:            in.Name,
		OwnerID:         in.OwnerID,
		Rating:          model.DefaultRating,
		PreferredVenues: append([]model.VenueID(nil), in.PreferredVenues...),
		HomeVenue:       in.HomeVenue,
	}
	if err := s.store.SaveTeam(ctx, team); err != nil {
		return nil, model.Wrap(op, err)
	}
	s.leaderboard.Set(ctx, team.ID, team.Rating)
	s.logger.Info(ctx, "team registered",
		logger.String("teamID", team.ID),
		logger.String("name", team.Name),
	)
	return team.Clone(), nil
}

// UpdatePreferences replaces the venue preferences of a team. Only the owner
// may change them.
func (s *Service) UpdatePreferences(ctx context.Context, in PreferencesInput) (team *model.Team, err error) {
	const op = "service.UpdatePreferences"
	start := s.clock.Now()
	defer func() { s.observe(ctx, op, start, err) }()

	if err := validation.Struct(op, in); err != nil {
		return nil, err
	}
	if err := s.checkVenues(ctx, op, in.PreferredVenues, in.HomeVenue); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, op, teamKey(in.TeamID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	team, err = s.store.LoadTeam(ctx, in.TeamID)
	if err != nil {
		return nil, model.Wrap(op, err)
	}
	if team.OwnerID != in.ActorID {
		return nil, model.WrapKind(op, model.ErrUnauthorized, fmt.Errorf("%q does not own team %s", in.ActorID, team.ID))
	}
	team.PreferredVenues = append([]model.VenueID(nil), in.PreferredVenues...)
	team.HomeVenue = in.HomeVenue
	if err := s.store.SaveTeam(ctx, team); err != nil {
		return nil, model.Wrap(op, err)
	}
	s.logger.Info(ctx, "preferences updated",
		logger.String("teamID", team.ID),
		logger.Int("venues", len(team.PreferredVenues)),
	)
	return team, nil
}

// checkVenues applies the preference rules and makes sure every venue exists.
func (s *Service) checkVenues(ctx context.Context, op string, preferred []model.VenueID, home model.VenueID) error {
	if err := model.ValidatePreferences(op, preferred); err != nil {
		return err
	}
	ids := preferred
	if home != "" {
		ids = append(append([]model.VenueID(nil), preferred...), home)
	}
	for _, id := range ids {
		if _, err := s.store.LoadVenue(ctx, id); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.Invalidf(op, "unknown venue %q", id)
			}
			return model.Wrap(op, err)
		}
	}
	return nil
}

// Leaderboard returns the n highest rated teams.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]model.Standing, error) {
	const op = "service.Leaderboard"
	rows, err := s.leaderboard.Top(ctx, n)
	if errors.Is(err, repository.ErrInvalidLimit) {
		return nil, model.WrapKind(op, model.ErrInvalidInput, err)
	}
	if err != nil {
		return nil, model.Wrap(op, err)
	}
	return rows, nil
}

// Standing returns the leaderboard row of one team.
func (s *Service) Standing(ctx context.Context, teamID model.TeamID) (model.Standing, error) {
	row, err := s.leaderboard.Standing(ctx, teamID)
	if err != nil {
		return model.Standing{}, model.Wrap("service.Standing", err)
	}
	return row, nil
}

// MatchHistory returns the team's completed matches, most recent first.
func (s *Service) MatchHistory(ctx context.Context, teamID model.TeamID) ([]model.Match, error) {
	const op = "service.MatchHistory"
	if _, err := s.store.LoadTeam(ctx, teamID); err != nil {
		return nil, model.Wrap(op, err)
	}
	all, err := s.store.ListMatchesForTeam(ctx, teamID)
	if err != nil {
		return nil, model.Wrap(op, err)
	}
	out := make([]model.Match, 0, len(all))
	for _, m := range all {
		if m.Completed {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out, nil
}

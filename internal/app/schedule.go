package service

import (
	"context"
	"fmt"

	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/internal/domain/scheduling"
	"github.com/okian/futsalrank/internal/validation"
	"github.com/okian/futsalrank/pkg/logger"
	"github.com/okian/futsalrank/pkg/metrics"
)

// scheduleAttempts bounds retries when a team's preferences change between
// choosing the venue and taking its lock.
const scheduleAttempts = 3

// ScheduleInput asks for a confirmed match to be booked on Date (YYYY-MM-DD).
type ScheduleInput struct {
	MatchID     model.MatchID `validate:"required"`
	ActorTeamID model.TeamID  `validate:"required"`
	Date        string        `validate:"required"`
}

// ScheduleResult is the booking made for a match.
type ScheduleResult struct {
	VenueID   model.VenueID `json:"venueId"`
	VenueName string        `json:"venueName"`
	Date      model.Date    `json:"date"`
}

// ScheduleMatch picks a venue for a confirmed match and books it. Dates in the
// past are refused before the match is looked at.
func (s *Service) ScheduleMatch(ctx context.Context, in ScheduleInput) (res ScheduleResult, err error) {
	const op = "service.ScheduleMatch"
	start := s.clock.Now()
	defer func() {
		s.observe(ctx, op, start, err)
		metrics.RecordSchedule(scheduleOutcome(err))
	}()

	if err := validation.Struct(op, in); err != nil {
		return ScheduleResult{}, err
	}
	day, err := scheduling.ParseDate(in.Date)
	if err != nil {
		return ScheduleResult{}, model.Wrap(op, err)
	}
	if day.Before(s.today()) {
		return ScheduleResult{}, model.Wrap(op, model.ErrDateInPast)
	}

	for attempt := 0; attempt < scheduleAttempts; attempt++ {
		res, retry, err := s.trySchedule(ctx, op, in, day)
		if !retry {
			return res, err
		}
		s.logger.Debug(ctx, "venue changed while locking, retrying",
			logger.String("matchID", in.MatchID),
			logger.Int("attempt", attempt+1),
		)
	}
	return ScheduleResult{}, model.WrapKind(op, model.ErrConflict, fmt.Errorf("venue choice kept changing for match %s", in.MatchID))
}

// trySchedule chooses the venue without locks, then locks the teams, both
// team-days and the venue-day and checks the choice still holds.
func (s *Service) trySchedule(ctx context.Context, op string, in ScheduleInput, day model.Date) (ScheduleResult, bool, error) {
	m, err := s.store.LoadMatch(ctx, in.MatchID)
	if err != nil {
		return ScheduleResult{}, false, model.Wrap(op, err)
	}
	if !m.Involves(in.ActorTeamID) {
		return ScheduleResult{}, false, model.WrapKind(op, model.ErrUnauthorized, fmt.Errorf("team %q does not play in match %s", in.ActorTeamID, m.ID))
	}
	if m.Status != model.StatusConfirmed {
		return ScheduleResult{}, false, notConfirmed(op, m)
	}
	confirming, other, err := s.participants(ctx, m, in.ActorTeamID)
	if err != nil {
		return ScheduleResult{}, false, model.Wrap(op, err)
	}
	venueID, ok := scheduling.PickVenue(confirming, other)
	if !ok {
		return ScheduleResult{}, false, model.Wrap(op, model.ErrNoVenue)
	}

	unlock, err := s.lock(ctx, op,
		teamKey(m.TeamA), teamKey(m.TeamB),
		teamDayKey(m.TeamA, day), teamDayKey(m.TeamB, day),
		venueDayKey(venueID, day),
	)
	if err != nil {
		return ScheduleResult{}, false, err
	}
	defer unlock()

	if m, err = s.store.LoadMatch(ctx, in.MatchID); err != nil {
		return ScheduleResult{}, false, model.Wrap(op, err)
	}
	if m.Status != model.StatusConfirmed {
		return ScheduleResult{}, false, notConfirmed(op, m)
	}
	if confirming, other, err = s.participants(ctx, m, in.ActorTeamID); err != nil {
		return ScheduleResult{}, false, model.Wrap(op, err)
	}
	sameDay, err := s.store.ListMatchesOnDate(ctx, day)
	if err != nil {
		return ScheduleResult{}, false, model.Wrap(op, err)
	}

	chosen, err := s.resolver.Resolve(scheduling.Input{
		Match:      m,
		Confirming: confirming,
		Other:      other,
		Date:       day,
		Today:      s.today(),
		SameDay:    sameDay,
	})
	if err != nil {
		s.logger.Warn(ctx, "scheduling refused",
			logger.String("matchID", m.ID),
			logger.String("date", day.String()),
			logger.Error(err),
		)
		return ScheduleResult{}, false, model.Wrap(op, err)
	}
	if chosen != venueID {
		return ScheduleResult{}, true, nil
	}

	venue, err := s.store.LoadVenue(ctx, chosen)
	if err != nil {
		return ScheduleResult{}, false, model.Wrap(op, err)
	}
	m.VenueID = chosen
	m.ScheduledDate = day
	m.Status = model.StatusScheduled
	if err := s.store.SaveMatch(ctx, m); err != nil {
		return ScheduleResult{}, false, model.Wrap(op, err)
	}

	s.logger.Info(ctx, "match scheduled",
		logger.String("matchID", m.ID),
		logger.String("venueID", venue.ID),
		logger.String("date", day.String()),
	)
	recipients := []string{m.TeamA, m.TeamB}
	if venue.OwnerID != "" {
		recipients = append(recipients, venue.OwnerID)
	}
	s.publish(ctx, model.Notification{
		Kind:       model.NotifyMatchScheduled,
		MatchID:    m.ID,
		Recipients: recipients,
		Payload:    map[string]any{"venue": venue.Name, "date": day.String()},
	})
	return ScheduleResult{VenueID: venue.ID, VenueName: venue.Name, Date: day}, false, nil
}

// participants returns the actor's team first and its opponent second.
func (s *Service) participants(ctx context.Context, m *model.Match, actor model.TeamID) (*model.Team, *model.Team, error) {
	confirming, err := s.store.LoadTeam(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	other, err := s.store.LoadTeam(ctx, m.Opponent(actor))
	if err != nil {
		return nil, nil, err
	}
	return confirming, other, nil
}

func notConfirmed(op string, m *model.Match) error {
	return model.WrapKind(op, model.ErrPreconditionFailed, fmt.Errorf("match is %s, not confirmed", m.Status))
}

func scheduleOutcome(err error) string {
	switch {
	case err == nil:
		return "scheduled"
	case model.KindOf(err) == model.ErrConflict:
		return "conflict"
	case model.KindOf(err) == model.ErrInvalidInput:
		return "invalid"
	default:
		return "refused"
	}
}

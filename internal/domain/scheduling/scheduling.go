// Package scheduling picks a venue for a confirmed match and detects booking
// conflicts on the requested day.
package scheduling

import (
	"github.com/okian/futsalrank/internal/domain/model"
)

// Input carries everything Resolve needs for one decision.
type Input struct {
	Match      *model.Match
	Confirming *model.Team // the participant scheduling the match
	Other      *model.Team
	Date       model.Date
	Today      model.Date
	SameDay    []model.Match // matches already on Date
}

// Resolver applies venue selection and conflict rules. It is stateless.
type Resolver struct{}

// NewResolver returns a Resolver.
func NewResolver() *Resolver { return &Resolver{} }

// ParseDate parses YYYY-MM-DD and reports malformed input as InvalidInput.
func ParseDate(s string) (model.Date, error) {
	d, err := model.ParseDate(s)
	if err != nil {
		return model.Date{}, model.WrapKind("scheduling.ParseDate", model.ErrInvalidInput, err)
	}
	return d, nil
}

// PickVenue returns the first venue in confirming's preference order that other
// also prefers, else confirming's home venue.
func PickVenue(confirming, other *model.Team) (model.VenueID, bool) {
	for _, v := range confirming.PreferredVenues {
		if other.Prefers(v) {
			return v, true
		}
	}
	if confirming.HomeVenue != "" {
		return confirming.HomeVenue, true
	}
	return "", false
}

// Resolve returns the venue for in.Match on in.Date. A date before today fails
// before any other check.
func (r *Resolver) Resolve(in Input) (model.VenueID, error) {
	const op = "scheduling.Resolve"
	if in.Date.IsZero() {
		return "", model.Invalidf(op, "date is required")
	}
	if in.Date.Before(in.Today) {
		return "", model.Wrap(op, model.ErrDateInPast)
	}
	if in.Match == nil || in.Confirming == nil || in.Other == nil {
		return "", model.Invalidf(op, "match and both teams are required")
	}

	venue, ok := PickVenue(in.Confirming, in.Other)
	if !ok {
		return "", model.Wrap(op, model.ErrNoVenue)
	}

	for i := range in.SameDay {
		m := &in.SameDay[i]
		if m.ID == in.Match.ID || !m.ScheduledDate.Equal(in.Date) {
			continue
		}
		if m.Status == model.StatusScheduled && m.VenueID == venue {
			return "", model.Wrap(op, model.ErrVenueBooked)
		}
	}
	for i := range in.SameDay {
		m := &in.SameDay[i]
		if m.ID == in.Match.ID || !m.ScheduledDate.Equal(in.Date) || m.Completed {
			continue
		}
		if m.Status != model.StatusConfirmed && m.Status != model.StatusScheduled {
			continue
		}
		if m.Involves(in.Match.TeamA) || m.Involves(in.Match.TeamB) {
			return "", model.Wrap(op, model.ErrTeamBusy)
		}
	}
	return venue, nil
}

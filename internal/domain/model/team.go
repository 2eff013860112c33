// Package model contains domain models passed between layers.
package model

import "math"

// DefaultRating is the rating every team starts with.
const DefaultRating = 1000.0

// MinPreferredVenues is the number of preferred venues required at registration.
const MinPreferredVenues = 2

// TeamID identifies a team.
type TeamID = string

// VenueID identifies a venue.
type VenueID = string

// Team is a registered futsal team and its competitive record.
type Team struct {
	ID              TeamID
	Name            string
	OwnerID         string // account that manages the team
	Rating          float64
	Wins            int
	MatchesPlayed   int
	PreferredVenues []VenueID // ordered by preference
	HomeVenue       VenueID   // optional
}

// WinRate is wins over matches played, 0 for a team that has not played.
func (t *Team) WinRate() float64 {
	if t.MatchesPlayed <= 0 {
		return 0
	}
	r := float64(t.Wins) / float64(t.MatchesPlayed)
	return math.Max(0, math.Min(1, r))
}

// WeightedScore scales win rate by experience: winRate * ln(matchesPlayed+1).
func (t *Team) WeightedScore() float64 {
	if t.MatchesPlayed <= 0 {
		return 0
	}
	return t.WinRate() * math.Log(float64(t.MatchesPlayed)+1)
}

// Prefers reports whether v is among the team's preferred venues.
func (t *Team) Prefers(v VenueID) bool {
	for _, p := range t.PreferredVenues {
		if p == v {
			return true
		}
	}
	return false
}

// SharesVenue reports whether the two teams have at least one preferred venue in common.
func (t *Team) SharesVenue(other *Team) bool {
	for _, v := range t.PreferredVenues {
		if other.Prefers(v) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so stores never hand out shared slices.
func (t *Team) Clone() *Team {
	if t == nil {
		return nil
	}
	c := *t
	c.PreferredVenues = append([]VenueID(nil), t.PreferredVenues...)
	return &c
}

// Venue is a bookable futsal ground.
type Venue struct {
	ID          VenueID
	Name        string
	OwnerID     string
	HourlyPrice float64
}

// ValidatePreferences checks the preferred venue list: at least MinPreferredVenues
// entries, none empty, no duplicates.
func ValidatePreferences(op string, venues []VenueID) error {
	if len(venues) < MinPreferredVenues {
		return Invalidf(op, "at least %d preferred venues required, got %d", MinPreferredVenues, len(venues))
	}
	seen := make(map[VenueID]struct{}, len(venues))
	for _, v := range venues {
		if v == "" {
			return Invalidf(op, "empty venue id in preferences")
		}
		if _, dup := seen[v]; dup {
			return Invalidf(op, "duplicate preferred venue %q", v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// TeamFilter narrows ListTeams. Zero value matches every team.
type TeamFilter struct {
	Exclude []TeamID // ids to leave out
	OwnerID string   // only teams owned by this account
}

// Match reports whether t passes the filter.
func (f TeamFilter) Match(t *Team) bool {
	if f.OwnerID != "" && t.OwnerID != f.OwnerID {
		return false
	}
	for _, id := range f.Exclude {
		if id == t.ID {
			return false
		}
	}
	return true
}

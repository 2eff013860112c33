package model

import "time"

// MatchID identifies a match (and the request that created it).
type MatchID = string

// MatchType distinguishes rated games from friendlies.
type MatchType string

const (
	MatchFriendly    MatchType = "friendly"
	MatchCompetitive MatchType = "competitive"
)

// Valid reports whether t is a known match type.
func (t MatchType) Valid() bool {
	return t == MatchFriendly || t == MatchCompetitive
}

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	StatusPending   MatchStatus = "pending"
	StatusConfirmed MatchStatus = "confirmed"
	StatusScheduled MatchStatus = "scheduled"
	StatusCompleted MatchStatus = "completed"
	StatusRejected  MatchStatus = "rejected"
)

// RequestStatus is the state of the invitation that created a match.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// Decision is the target team's answer to a request.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// Match is a game between TeamA (the requester) and TeamB (the invited team).
// While Status is pending the match doubles as the match request.
type Match struct {
	ID            MatchID
	TeamA         TeamID
	TeamB         TeamID
	Type          MatchType
	Status        MatchStatus
	GoalsA        *int
	GoalsB        *int
	Completed     bool
	VenueID       VenueID
	ScheduledDate Date
	CreatedAt     time.Time
	CompletedAt   time.Time
}

// RequestStatus derives the invitation state from the match lifecycle.
func (m *Match) RequestStatus() RequestStatus {
	switch m.Status {
	case StatusPending:
		return RequestPending
	case StatusRejected:
		return RequestRejected
	default:
		return RequestAccepted
	}
}

// Open reports whether the match still blocks a new request between the same pair.
func (m *Match) Open() bool {
	return !m.Completed && m.Status != StatusCompleted && m.Status != StatusRejected
}

// Involves reports whether team plays in the match.
func (m *Match) Involves(team TeamID) bool {
	return m.TeamA == team || m.TeamB == team
}

// Between reports whether the match is between a and b in either direction.
func (m *Match) Between(a, b TeamID) bool {
	return (m.TeamA == a && m.TeamB == b) || (m.TeamA == b && m.TeamB == a)
}

// Opponent returns the other participant, or "" when team does not play.
func (m *Match) Opponent(team TeamID) TeamID {
	switch team {
	case m.TeamA:
		return m.TeamB
	case m.TeamB:
		return m.TeamA
	}
	return ""
}

// GoalsFor returns goals for and against team. ok is false until both scores are set
// or when team does not play.
func (m *Match) GoalsFor(team TeamID) (goalsFor, goalsAgainst int, ok bool) {
	if m.GoalsA == nil || m.GoalsB == nil {
		return 0, 0, false
	}
	switch team {
	case m.TeamA:
		return *m.GoalsA, *m.GoalsB, true
	case m.TeamB:
		return *m.GoalsB, *m.GoalsA, true
	}
	return 0, 0, false
}

// Clone returns a copy that shares no pointers with m.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	if m.GoalsA != nil {
		g := *m.GoalsA
		c.GoalsA = &g
	}
	if m.GoalsB != nil {
		g := *m.GoalsB
		c.GoalsB = &g
	}
	return &c
}

// RejectionRecord notes that Rejecting turned down a request from Rejected.
type RejectionRecord struct {
	Rejecting TeamID
	Rejected  TeamID
	Timestamp time.Time
	Cleared   bool
}

// Standing is one leaderboard row.
type Standing struct {
	Rank   int     `json:"rank"`
	TeamID TeamID  `json:"team_id"`
	Rating float64 `json:"rating"`
}

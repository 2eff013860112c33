// Package simulate plays whole seasons against an in-process engine: teams
// ask for recommendations, invite opponents, answer, schedule and report
// results. It is used for load and sanity testing of the engine.
package simulate

import (
	"sync/atomic"
	"time"
)

// Config holds configuration for a simulated season.
type Config struct {
	Teams           int           // number of registered teams
	Venues          int           // number of venues
	Rounds          int           // one round per simulated day
	Workers         int           // concurrent requesters per round
	TopN            int           // recommendations asked for per request
	AcceptRate      float64       // probability an invitation is accepted
	CompetitiveRate float64       // probability a request is competitive
	Seed            uint64        // seed for every random choice
	Start           time.Time     // first simulated day
	Cooldown        time.Duration // rejection cooldown period
	OutputFile      string        // optional JSON report path
	Verbose         bool          // log every fixture
}

// DefaultConfig returns a small, fast season.
func DefaultConfig() Config {
	return Config{
		Teams:           16,
		Venues:          5,
		Rounds:          10,
		Workers:         4,
		TopN:            3,
		AcceptRate:      0.7,
		CompetitiveRate: 0.8,
		Seed:            1,
		Start:           time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		Cooldown:        24 * time.Hour,
	}
}

// Stats holds season counters. Fields are updated concurrently.
type Stats struct {
	Requests          atomic.Int64
	CooldownBlocked   atomic.Int64
	AlreadyOpen       atomic.Int64
	Accepted          atomic.Int64
	Rejected          atomic.Int64
	Scheduled         atomic.Int64
	ScheduleConflicts atomic.Int64
	NoVenue           atomic.Int64
	Finalized         atomic.Int64
	Failures          atomic.Int64
	Notifications     atomic.Int64
}

// Summary is a plain snapshot of Stats.
type Summary struct {
	Requests          int64 `json:"requests"`
	CooldownBlocked   int64 `json:"cooldownBlocked"`
	AlreadyOpen       int64 `json:"alreadyOpen"`
	Accepted          int64 `json:"accepted"`
	Rejected          int64 `json:"rejected"`
	Scheduled         int64 `json:"scheduled"`
	ScheduleConflicts int64 `json:"scheduleConflicts"`
	NoVenue           int64 `json:"noVenue"`
	Finalized         int64 `json:"finalized"`
	Failures          int64 `json:"failures"`
	Notifications     int64 `json:"notifications"`
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() Summary {
	return Summary{
		Requests:          s.Requests.Load(),
		CooldownBlocked:   s.CooldownBlocked.Load(),
		AlreadyOpen:       s.AlreadyOpen.Load(),
		Accepted:          s.Accepted.Load(),
		Rejected:          s.Rejected.Load(),
		Scheduled:         s.Scheduled.Load(),
		ScheduleConflicts: s.ScheduleConflicts.Load(),
		NoVenue:           s.NoVenue.Load(),
		Finalized:         s.Finalized.Load(),
		Failures:          s.Failures.Load(),
		Notifications:     s.Notifications.Load(),
	}
}

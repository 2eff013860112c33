// Package rating applies Elo-style rating changes after a match result.
package rating

import (
	"math"
	"sort"

	"github.com/okian/futsalrank/internal/domain/model"
)

// Default rating parameters.
const (
	defaultBaseK        = 32.0
	maxGoalFactor       = 2.5
	maxWinnerActual     = 1.5
	drawActual          = 0.5
	goalFactorSlope     = 0.5
	eloScale            = 400.0
	defaultVeteranGames = 50
	defaultSeasonGames  = 20
	defaultVeteranScale = 0.8
	defaultSeasonScale  = 0.9
)

// Tier reduces K for teams that have played at least MinGames.
type Tier struct {
	MinGames int
	Factor   float64
}

// Option configures an Updater.
type Option func(*Updater)

// WithBaseK overrides the base K factor.
func WithBaseK(k float64) Option {
	return func(u *Updater) {
		if k > 0 {
			u.baseK = k
		}
	}
}

// WithExperienceTiers replaces the experience tiers. Tiers are checked from the
// highest MinGames down; a team below every tier uses factor 1.0.
func WithExperienceTiers(tiers ...Tier) Option {
	return func(u *Updater) {
		valid := make([]Tier, 0, len(tiers))
		for _, t := range tiers {
			if t.MinGames > 0 && t.Factor > 0 {
				valid = append(valid, t)
			}
		}
		sort.Slice(valid, func(i, j int) bool { return valid[i].MinGames > valid[j].MinGames })
		u.tiers = valid
	}
}

// Result is the outcome of one rating update.
type Result struct {
	DeltaA     float64
	DeltaB     float64
	NewRatingA float64
	NewRatingB float64
}

// Updater computes and applies rating changes. It holds no mutable state and is
// safe for concurrent use.
type Updater struct {
	baseK float64
	tiers []Tier // sorted by MinGames desc
}

// NewUpdater creates an updater with the default 32-point K and 50/20 game tiers.
func NewUpdater(opts ...Option) *Updater {
	u := &Updater{
		baseK: defaultBaseK,
		tiers: []Tier{
			{MinGames: defaultVeteranGames, Factor: defaultVeteranScale},
			{MinGames: defaultSeasonGames, Factor: defaultSeasonScale},
		},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Apply mutates a and b in place with the result of a game that ended
// goalsA-goalsB. Wins and MatchesPlayed are updated too. Callers must invoke
// it once per match.
func (u *Updater) Apply(a, b *model.Team, goalsA, goalsB int) (Result, error) {
	const op = "rating.Apply"
	if a == nil || b == nil {
		return Result{}, model.Invalidf(op, "both teams are required")
	}
	if goalsA < 0 || goalsB < 0 {
		return Result{}, model.Invalidf(op, "negative goals %d-%d", goalsA, goalsB)
	}

	expectedA := Expected(a.Rating, b.Rating)
	expectedB := Expected(b.Rating, a.Rating)

	var actualA, actualB float64
	switch {
	case goalsA > goalsB:
		actualA = math.Min(GoalFactor(goalsA-goalsB), maxWinnerActual)
		a.Wins++
	case goalsB > goalsA:
		actualB = math.Min(GoalFactor(goalsB-goalsA), maxWinnerActual)
		b.Wins++
	default:
		actualA, actualB = drawActual, drawActual
	}

	// K depends on games played before this match.
	kA := u.baseK * u.ExperienceFactor(a.MatchesPlayed)
	kB := u.baseK * u.ExperienceFactor(b.MatchesPlayed)

	res := Result{
		DeltaA: round2(kA * (actualA - expectedA)),
		DeltaB: round2(kB * (actualB - expectedB)),
	}
	res.NewRatingA = round2(a.Rating + res.DeltaA)
	res.NewRatingB = round2(b.Rating + res.DeltaB)

	a.Rating, b.Rating = res.NewRatingA, res.NewRatingB
	a.MatchesPlayed++
	b.MatchesPlayed++
	return res, nil
}

// ExperienceFactor returns the K multiplier for a team with gamesPlayed games.
func (u *Updater) ExperienceFactor(gamesPlayed int) float64 {
	for _, t := range u.tiers {
		if gamesPlayed >= t.MinGames {
			return t.Factor
		}
	}
	return 1.0
}

// Expected is the Elo expected score of a team rated r1 against r2.
func Expected(r1, r2 float64) float64 {
	return 1 / (1 + math.Pow(10, (r2-r1)/eloScale))
}

// GoalFactor grows logarithmically with the goal difference and is capped at 2.5.
func GoalFactor(diff int) float64 {
	if diff < 0 {
		diff = -diff
	}
	if diff == 0 {
		return 1.0
	}
	return math.Min(1+goalFactorSlope*math.Log(float64(diff)+1), maxGoalFactor)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

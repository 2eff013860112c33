package rating_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

func newTeam(id string, r float64, played int) *model.Team {
	return &model.Team{ID: id, Rating: r, MatchesPlayed: played}
}

func TestUpdaterApply(t *testing.T) {
	Convey("Given a default updater", t, func() {
		u := rating.NewUpdater()

		Convey("When two fresh 1000-rated teams finish 3-0", func() {
			a, b := newTeam("a", 1000, 0), newTeam("b", 1000, 0)
			res, err := u.Apply(a, b, 3, 0)

			Convey("Then the winner gains 32 and the loser drops 16", func() {
				So(err, ShouldBeNil)
				So(res.DeltaA, ShouldEqual, 32.0)
				So(res.DeltaB, ShouldEqual, -16.0)
				So(res.NewRatingA, ShouldEqual, 1032.0)
				So(res.NewRatingB, ShouldEqual, 984.0)
			})

			Convey("And the records are updated", func() {
				So(a.Rating, ShouldEqual, 1032.0)
				So(b.Rating, ShouldEqual, 984.0)
				So(a.Wins, ShouldEqual, 1)
				So(b.Wins, ShouldEqual, 0)
				So(a.MatchesPlayed, ShouldEqual, 1)
				So(b.MatchesPlayed, ShouldEqual, 1)
			})
		})

		Convey("When equal teams draw", func() {
			a, b := newTeam("a", 1000, 5), newTeam("b", 1000, 5)
			res, err := u.Apply(a, b, 2, 2)

			Convey("Then nobody moves and nobody wins", func() {
				So(err, ShouldBeNil)
				So(res.DeltaA, ShouldEqual, 0.0)
				So(res.DeltaB, ShouldEqual, 0.0)
				So(a.Wins+b.Wins, ShouldEqual, 0)
				So(a.MatchesPlayed, ShouldEqual, 6)
			})
		})

		Convey("When the underdog wins 1-0", func() {
			a, b := newTeam("a", 900, 0), newTeam("b", 1100, 0)
			res, err := u.Apply(a, b, 1, 0)

			Convey("Then it gains more than a favourite would", func() {
				So(err, ShouldBeNil)
				expected := rating.Expected(900, 1100)
				want := math.Round(32*(rating.GoalFactor(1)-expected)*100) / 100
				So(res.DeltaA, ShouldEqual, want)
				So(res.DeltaA, ShouldBeGreaterThan, 16.0)
			})
		})

		Convey("When a veteran team plays", func() {
			a, b := newTeam("a", 1000, 50), newTeam("b", 1000, 20)
			res, err := u.Apply(a, b, 0, 0)

			Convey("Then experience factors use games played before the match", func() {
				So(err, ShouldBeNil)
				So(res.DeltaA, ShouldEqual, 0.0)
				So(u.ExperienceFactor(50), ShouldEqual, 0.8)
				So(u.ExperienceFactor(49), ShouldEqual, 0.9)
				So(u.ExperienceFactor(20), ShouldEqual, 0.9)
				So(u.ExperienceFactor(19), ShouldEqual, 1.0)
			})
		})

		Convey("When goals are negative", func() {
			_, err := u.Apply(newTeam("a", 1000, 0), newTeam("b", 1000, 0), -1, 0)
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When the goal difference grows", func() {
			Convey("Then the winner's delta never shrinks", func() {
				prev := 0.0
				for d := 1; d <= 10; d++ {
					a, b := newTeam("a", 1000, 0), newTeam("b", 1000, 0)
					res, err := u.Apply(a, b, d, 0)
					So(err, ShouldBeNil)
					So(math.Abs(res.DeltaA), ShouldBeGreaterThanOrEqualTo, prev)
					prev = math.Abs(res.DeltaA)
				}
			})
		})
	})
}

func TestGoalFactor(t *testing.T) {
	Convey("Given goal differences", t, func() {
		So(rating.GoalFactor(0), ShouldEqual, 1.0)
		So(rating.GoalFactor(1), ShouldAlmostEqual, 1+0.5*math.Log(2), 1e-12)
		So(rating.GoalFactor(-1), ShouldEqual, rating.GoalFactor(1))
		So(rating.GoalFactor(1000), ShouldEqual, 2.5)
	})
}

func TestOptions(t *testing.T) {
	Convey("Given custom options", t, func() {
		u := rating.NewUpdater(
			rating.WithBaseK(16),
			rating.WithExperienceTiers(rating.Tier{MinGames: 5, Factor: 0.5}, rating.Tier{MinGames: 10, Factor: 0.25}),
		)

		Convey("Then tiers are checked from the highest threshold", func() {
			So(u.ExperienceFactor(12), ShouldEqual, 0.25)
			So(u.ExperienceFactor(7), ShouldEqual, 0.5)
			So(u.ExperienceFactor(1), ShouldEqual, 1.0)
		})

		Convey("And the base K applies", func() {
			a, b := newTeam("a", 1000, 0), newTeam("b", 1000, 0)
			res, err := u.Apply(a, b, 0, 3)
			So(err, ShouldBeNil)
			So(res.DeltaB, ShouldEqual, 16.0)
			So(res.DeltaA, ShouldEqual, -8.0)
		})
	})
}

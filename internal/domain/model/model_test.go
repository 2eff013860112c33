package model_test

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/okian/futsalrank/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTeamDerivedStats(t *testing.T) {
	Convey("Given teams with different records", t, func() {
		Convey("When a team has not played", func() {
			team := &model.Team{ID: "t1", Rating: model.DefaultRating}

			Convey("Then win rate and weighted score are zero", func() {
				So(team.WinRate(), ShouldEqual, 0.0)
				So(team.WeightedScore(), ShouldEqual, 0.0)
			})
		})

		Convey("When a team has won 3 of 4", func() {
			team := &model.Team{ID: "t1", Wins: 3, MatchesPlayed: 4}

			Convey("Then win rate is 0.75", func() {
				So(team.WinRate(), ShouldEqual, 0.75)
			})

			Convey("And weighted score scales by ln(mp+1)", func() {
				So(team.WeightedScore(), ShouldAlmostEqual, 0.75*math.Log(5), 1e-12)
			})
		})

		Convey("When the record spans every ratio", func() {
			Convey("Then win rate stays within [0,1]", func() {
				for mp := 0; mp <= 25; mp++ {
					for w := 0; w <= mp; w++ {
						r := (&model.Team{Wins: w, MatchesPlayed: mp}).WinRate()
						So(r, ShouldBeBetweenOrEqual, 0.0, 1.0)
					}
				}
			})
		})
	})
}

func TestTeamVenues(t *testing.T) {
	Convey("Given two teams with preferred venues", t, func() {
		a := &model.Team{ID: "a", PreferredVenues: []model.VenueID{"v1", "v2"}}
		b := &model.Team{ID: "b", PreferredVenues: []model.VenueID{"v3", "v2"}}
		c := &model.Team{ID: "c", PreferredVenues: []model.VenueID{"v4", "v5"}}

		Convey("Then overlap is detected", func() {
			So(a.SharesVenue(b), ShouldBeTrue)
			So(a.SharesVenue(c), ShouldBeFalse)
			So(b.Prefers("v3"), ShouldBeTrue)
		})

		Convey("And clones do not share preference slices", func() {
			cl := a.Clone()
			cl.PreferredVenues[0] = "changed"
			So(a.PreferredVenues[0], ShouldEqual, "v1")
		})
	})
}

func TestValidatePreferences(t *testing.T) {
	Convey("Given preference lists", t, func() {
		Convey("When fewer than two venues are given", func() {
			err := model.ValidatePreferences("op", []model.VenueID{"v1"})
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When a venue is duplicated", func() {
			err := model.ValidatePreferences("op", []model.VenueID{"v1", "v1"})
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When two distinct venues are given", func() {
			So(model.ValidatePreferences("op", []model.VenueID{"v1", "v2"}), ShouldBeNil)
		})
	})
}

func TestMatchHelpers(t *testing.T) {
	Convey("Given a completed match", t, func() {
		ga, gb := 3, 1
		m := &model.Match{ID: "m1", TeamA: "a", TeamB: "b", Status: model.StatusCompleted, Completed: true, GoalsA: &ga, GoalsB: &gb}

		Convey("Then participants and goals resolve from each side", func() {
			So(m.Involves("a"), ShouldBeTrue)
			So(m.Involves("c"), ShouldBeFalse)
			So(m.Opponent("a"), ShouldEqual, "b")
			So(m.Opponent("c"), ShouldEqual, "")
			So(m.Between("b", "a"), ShouldBeTrue)

			gf, ga2, ok := m.GoalsFor("b")
			So(ok, ShouldBeTrue)
			So(gf, ShouldEqual, 1)
			So(ga2, ShouldEqual, 3)
		})

		Convey("And it no longer blocks new requests", func() {
			So(m.Open(), ShouldBeFalse)
			So(m.RequestStatus(), ShouldEqual, model.RequestAccepted)
		})

		Convey("And clones do not share score pointers", func() {
			cl := m.Clone()
			*cl.GoalsA = 9
			So(*m.GoalsA, ShouldEqual, 3)
		})
	})

	Convey("Given request states", t, func() {
		So((&model.Match{Status: model.StatusPending}).RequestStatus(), ShouldEqual, model.RequestPending)
		So((&model.Match{Status: model.StatusRejected}).RequestStatus(), ShouldEqual, model.RequestRejected)
		So((&model.Match{Status: model.StatusRejected}).Open(), ShouldBeFalse)
		So((&model.Match{Status: model.StatusConfirmed}).Open(), ShouldBeTrue)
	})
}

func TestDate(t *testing.T) {
	Convey("Given calendar dates", t, func() {
		Convey("When parsing a valid date", func() {
			d, err := model.ParseDate("2025-03-09")
			So(err, ShouldBeNil)
			So(d.String(), ShouldEqual, "2025-03-09")
			So(d.Equal(model.NewDate(2025, time.March, 9)), ShouldBeTrue)
		})

		Convey("When parsing garbage", func() {
			_, err := model.ParseDate("09/03/2025")
			So(err, ShouldNotBeNil)
		})

		Convey("When comparing days", func() {
			late := time.Date(2025, time.March, 9, 23, 59, 0, 0, time.UTC)
			d := model.DateOf(late)
			So(d.Equal(model.NewDate(2025, time.March, 9)), ShouldBeTrue)
			So(d.Before(d.AddDays(1)), ShouldBeTrue)
			So(d.AddDays(-1).Before(d), ShouldBeTrue)
		})

		Convey("When the date is unset", func() {
			var d model.Date
			So(d.IsZero(), ShouldBeTrue)
			So(d.String(), ShouldEqual, "")
			So(model.NewDate(2025, time.March, 9).Time(), ShouldEqual, time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC))
		})

		Convey("When round-tripping text", func() {
			var d model.Date
			So(d.UnmarshalText([]byte("2024-12-31")), ShouldBeNil)
			b, err := d.MarshalText()
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "2024-12-31")
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given kinded errors", t, func() {
		Convey("When a specific sentinel is wrapped", func() {
			err := model.Wrap("ScheduleMatch", model.ErrVenueBooked)

			Convey("Then it matches both the sentinel and its kind", func() {
				So(errors.Is(err, model.ErrVenueBooked), ShouldBeTrue)
				So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
				So(errors.Is(err, model.ErrNotFound), ShouldBeFalse)
				So(model.KindName(err), ShouldEqual, "conflict")
			})
		})

		Convey("When a plain cause is wrapped with a kind", func() {
			err := model.WrapKind("LoadTeam", model.ErrNotFound, fmt.Errorf("team %q", "x"))
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			So(err.Error(), ShouldEqual, `LoadTeam: not found: team "x"`)
		})

		Convey("When an error has no kind", func() {
			So(model.KindOf(errors.New("boom")), ShouldBeNil)
			So(model.KindName(errors.New("boom")), ShouldEqual, "internal")
			So(model.KindName(nil), ShouldEqual, "none")
			So(model.Wrap("op", nil), ShouldBeNil)
		})

		Convey("When nested wraps stack", func() {
			inner := model.NewKind("inner", model.ErrUnauthorized)
			outer := model.Wrap("outer", inner)
			So(errors.Is(outer, model.ErrUnauthorized), ShouldBeTrue)

			var me *model.Error
			So(errors.As(outer, &me), ShouldBeTrue)
			So(me.Op, ShouldEqual, "outer")
		})
	})
}

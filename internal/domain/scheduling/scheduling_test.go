package scheduling_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/internal/domain/scheduling"
)

func TestResolve(t *testing.T) {
	Convey("Given a confirmed match between A and B", t, func() {
		r := scheduling.NewResolver()
		today := model.NewDate(2025, time.May, 1)
		day := today.AddDays(3)
		a := &model.Team{ID: "A", PreferredVenues: []model.VenueID{"v1", "v2", "v3"}, HomeVenue: "home-a"}
		b := &model.Team{ID: "B", PreferredVenues: []model.VenueID{"v3", "v2"}}
		match := &model.Match{ID: "m1", TeamA: "A", TeamB: "B", Status: model.StatusConfirmed}
		in := scheduling.Input{Match: match, Confirming: a, Other: b, Date: day, Today: today}

		Convey("When both share venues", func() {
			venue, err := r.Resolve(in)

			Convey("Then the confirming team's order decides", func() {
				So(err, ShouldBeNil)
				So(venue, ShouldEqual, "v2")
			})
		})

		Convey("When B confirms instead", func() {
			in.Confirming, in.Other = b, a
			venue, err := r.Resolve(in)
			So(err, ShouldBeNil)
			So(venue, ShouldEqual, "v3")
		})

		Convey("When no venue is shared", func() {
			b.PreferredVenues = []model.VenueID{"v8", "v9"}

			Convey("Then the home venue is used", func() {
				venue, err := r.Resolve(in)
				So(err, ShouldBeNil)
				So(venue, ShouldEqual, "home-a")
			})

			Convey("And without a home venue scheduling fails", func() {
				a.HomeVenue = ""
				_, err := r.Resolve(in)
				So(errors.Is(err, model.ErrNoVenue), ShouldBeTrue)
				So(errors.Is(err, model.ErrPreconditionFailed), ShouldBeTrue)
			})
		})

		Convey("When the date is in the past", func() {
			in.Date = today.AddDays(-1)

			Convey("Then it fails with invalid input even if nothing else is valid", func() {
				in.Other = nil
				a.PreferredVenues, a.HomeVenue = nil, ""
				_, err := r.Resolve(in)
				So(errors.Is(err, model.ErrDateInPast), ShouldBeTrue)
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When the date is today", func() {
			in.Date = today
			_, err := r.Resolve(in)
			So(err, ShouldBeNil)
		})

		Convey("When the venue is already taken that day", func() {
			in.SameDay = []model.Match{{ID: "m2", TeamA: "C", TeamB: "D", Status: model.StatusScheduled, VenueID: "v2", ScheduledDate: day}}
			_, err := r.Resolve(in)
			So(errors.Is(err, model.ErrVenueBooked), ShouldBeTrue)
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
		})

		Convey("When a participant already plays that day elsewhere", func() {
			in.SameDay = []model.Match{{ID: "m3", TeamA: "B", TeamB: "E", Status: model.StatusScheduled, VenueID: "v9", ScheduledDate: day}}
			_, err := r.Resolve(in)
			So(errors.Is(err, model.ErrTeamBusy), ShouldBeTrue)
		})

		Convey("When the other match that day is already completed", func() {
			in.SameDay = []model.Match{{ID: "m4", TeamA: "B", TeamB: "E", Status: model.StatusCompleted, Completed: true, VenueID: "v9", ScheduledDate: day}}
			_, err := r.Resolve(in)
			So(err, ShouldBeNil)
		})

		Convey("When the only same-day match is this one", func() {
			in.SameDay = []model.Match{{ID: "m1", TeamA: "A", TeamB: "B", Status: model.StatusScheduled, VenueID: "v2", ScheduledDate: day}}
			_, err := r.Resolve(in)
			So(err, ShouldBeNil)
		})
	})
}

func TestParseDate(t *testing.T) {
	Convey("Given date strings", t, func() {
		d, err := scheduling.ParseDate("2025-06-01")
		So(err, ShouldBeNil)
		So(d.String(), ShouldEqual, "2025-06-01")

		_, err = scheduling.ParseDate("tomorrow")
		So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
	})
}

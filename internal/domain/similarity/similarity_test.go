package similarity_test

import (
	"math"
	"testing"

	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/internal/domain/similarity"
	. "github.com/smartystreets/goconvey/convey"
)

func played(a, b string, ga, gb int, typ model.MatchType) model.Match {
	return model.Match{
		ID: a + "-" + b, TeamA: a, TeamB: b, Type: typ,
		Status: model.StatusCompleted, Completed: true,
		GoalsA: &ga, GoalsB: &gb,
	}
}

func ids(s []similarity.Score) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = v.TeamID
	}
	return out
}

func TestCollaborative(t *testing.T) {
	Convey("Given a shared opponent history", t, func() {
		matches := []model.Match{
			played("T", "X", 2, 0, model.MatchCompetitive),
			played("C1", "X", 3, 1, model.MatchCompetitive),
			played("X", "C2", 2, 0, model.MatchCompetitive),
			played("T", "C3", 5, 0, model.MatchFriendly),
		}

		Convey("When ranking candidates", func() {
			out := similarity.Collaborative("T", []model.TeamID{"C2", "C3", "C1"}, matches, 0)

			Convey("Then the team with the same pattern ranks first", func() {
				So(ids(out), ShouldResemble, []string{"C1", "C3", "C2"})
				So(out[0].Score, ShouldAlmostEqual, 1.0, 1e-9)
			})

			Convey("And friendlies do not contribute", func() {
				So(out[1].Score, ShouldEqual, 0.0)
			})

			Convey("And opposite results score negatively", func() {
				So(out[2].Score, ShouldAlmostEqual, -3/math.Sqrt(30), 1e-9)
			})
		})

		Convey("When topN is smaller than the pool", func() {
			out := similarity.Collaborative("T", []model.TeamID{"C1", "C2", "C3"}, matches, 1)
			So(ids(out), ShouldResemble, []string{"C1"})
		})

		Convey("When the target itself and duplicates are passed", func() {
			out := similarity.Collaborative("T", []model.TeamID{"T", "C1", "C1"}, matches, 0)
			So(ids(out), ShouldResemble, []string{"C1"})
		})

		Convey("When incomplete matches exist", func() {
			pending := model.Match{TeamA: "T", TeamB: "C9", Type: model.MatchCompetitive, Status: model.StatusScheduled}
			out := similarity.Collaborative("T", []model.TeamID{"C9"}, append(matches, pending), 0)
			So(out[0].Score, ShouldEqual, 0.0)
		})

		Convey("When nobody has history", func() {
			out := similarity.Collaborative("T", []model.TeamID{"b", "a"}, nil, 0)

			Convey("Then every score is zero and ids break the tie", func() {
				So(ids(out), ShouldResemble, []string{"a", "b"})
			})
		})
	})
}

func TestContent(t *testing.T) {
	Convey("Given a target preferring venues A and B", t, func() {
		target := &model.Team{ID: "T", Rating: 1000, PreferredVenues: []model.VenueID{"A", "B"}}

		Convey("When X shares a venue and Y does not with equal similarity", func() {
			x := &model.Team{ID: "X", Rating: 1000, PreferredVenues: []model.VenueID{"A"}}
			y := &model.Team{ID: "Y", Rating: 1000, PreferredVenues: []model.VenueID{"C"}}
			out := similarity.Content(target, []*model.Team{y, x}, 0)

			Convey("Then X comes first", func() {
				So(ids(out), ShouldResemble, []string{"X", "Y"})
				So(out[0].Score, ShouldEqual, 1.0)
			})
		})

		Convey("When the overlapping candidate is far less similar", func() {
			far := &model.Team{ID: "far", Rating: 1400, PreferredVenues: []model.VenueID{"B"}}
			near := &model.Team{ID: "near", Rating: 1001, PreferredVenues: []model.VenueID{"Z"}}
			out := similarity.Content(target, []*model.Team{near, far}, 0)

			Convey("Then venue overlap still wins the bucket order", func() {
				So(ids(out), ShouldResemble, []string{"far", "near"})
				So(out[0].Score, ShouldAlmostEqual, 1.0/401, 1e-12)
				So(out[1].Score, ShouldAlmostEqual, 0.5, 1e-12)
			})
		})

		Convey("When weighted scores differ", func() {
			exp := &model.Team{ID: "exp", Rating: 1000, Wins: 3, MatchesPlayed: 3, PreferredVenues: []model.VenueID{"A"}}
			out := similarity.Content(target, []*model.Team{exp}, 0)
			So(out[0].Score, ShouldAlmostEqual, 1/(1+math.Log(4)), 1e-12)
		})

		Convey("When the target is among the candidates", func() {
			out := similarity.Content(target, []*model.Team{target}, 0)
			So(out, ShouldBeEmpty)
		})

		Convey("When topN truncates", func() {
			a := &model.Team{ID: "a", Rating: 1000, PreferredVenues: []model.VenueID{"A"}}
			b := &model.Team{ID: "b", Rating: 1000, PreferredVenues: []model.VenueID{"B"}}
			out := similarity.Content(target, []*model.Team{b, a}, 1)
			So(ids(out), ShouldResemble, []string{"a"})
		})
	})
}

func TestCosine(t *testing.T) {
	Convey("Given vectors", t, func() {
		So(similarity.Cosine([]float64{1, 0}, []float64{0, 1}), ShouldEqual, 0.0)
		So(similarity.Cosine([]float64{2, 0}, []float64{5, 0}), ShouldEqual, 1.0)
		So(similarity.Cosine([]float64{0, 0}, []float64{1, 1}), ShouldEqual, 0.0)
		So(similarity.Cosine([]float64{1}, []float64{1, 2}), ShouldEqual, 0.0)
		So(similarity.Cosine(nil, nil), ShouldEqual, 0.0)
	})
}

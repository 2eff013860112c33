package simulate

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/futsalrank/internal/domain/model"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Teams = 8
	cfg.Venues = 3
	cfg.Rounds = 4
	cfg.Workers = 2
	return cfg
}

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		venues := generateVenues(4)
		rng := rand.New(rand.NewPCG(42, 0))
		teams := generateTeams(rng, 10, venues)

		Convey("Then venues get distinct ids and owners", func() {
			So(venues, ShouldHaveLength, 4)
			So(venues[0].ID, ShouldNotEqual, venues[1].ID)
			So(venues[2].OwnerID, ShouldEqual, venueOwner(2))
		})

		Convey("Then every team prefers two or three distinct known venues", func() {
			known := map[model.VenueID]bool{}
			for _, v := range venues {
				known[v.ID] = true
			}
			for _, ro := range teams {
				prefs := ro.team.PreferredVenues
				So(len(prefs), ShouldBeBetweenOrEqual, minPreferred, maxPreferred)
				seen := map[model.VenueID]bool{}
				for _, p := range prefs {
					So(known[p], ShouldBeTrue)
					So(seen[p], ShouldBeFalse)
					seen[p] = true
				}
				So(ro.strength, ShouldBeBetweenOrEqual, 0, maxStrength)
			}
		})

		Convey("Then the same seed gives the same teams", func() {
			again := generateTeams(rand.New(rand.NewPCG(42, 0)), 10, venues)
			So(again, ShouldResemble, teams)
		})

		Convey("Then scores are never negative", func() {
			for i := 0; i < 50; i++ {
				a, b := drawScore(rng, 0, maxStrength)
				So(a, ShouldBeGreaterThanOrEqualTo, 0)
				So(b, ShouldBeGreaterThanOrEqualTo, 0)
			}
		})
	})
}

func TestConfigValidation(t *testing.T) {
	Convey("Given runner construction", t, func() {
		Convey("The defaults are accepted", func() {
			_, err := New(DefaultConfig())
			So(err, ShouldBeNil)
		})

		Convey("Out of range values are refused", func() {
			for _, mutate := range []func(*Config){
				func(c *Config) { c.Teams = 1 },
				func(c *Config) { c.Venues = 1 },
				func(c *Config) { c.Rounds = 0 },
				func(c *Config) { c.Workers = 0 },
				func(c *Config) { c.AcceptRate = 1.5 },
				func(c *Config) { c.CompetitiveRate = -0.1 },
			} {
				cfg := DefaultConfig()
				mutate(&cfg)
				_, err := New(cfg)
				So(err, ShouldNotBeNil)
			}
		})
	})
}

func TestVerifyLeaderboardConsistency(t *testing.T) {
	Convey("Given leaderboard rows", t, func() {
		Convey("Sorted rows with dense ranks pass", func() {
			board := []model.Standing{
				{Rank: 1, TeamID: "a", Rating: 1040},
				{Rank: 1, TeamID: "b", Rating: 1040},
				{Rank: 2, TeamID: "c", Rating: 1000},
			}
			So(verifyLeaderboardConsistency(board, 3), ShouldBeNil)
		})

		Convey("Unsorted rows fail", func() {
			board := []model.Standing{
				{Rank: 1, TeamID: "a", Rating: 990},
				{Rank: 2, TeamID: "b", Rating: 1000},
			}
			So(verifyLeaderboardConsistency(board, 2), ShouldNotBeNil)
		})

		Convey("Rank gaps fail", func() {
			board := []model.Standing{
				{Rank: 1, TeamID: "a", Rating: 1010},
				{Rank: 3, TeamID: "b", Rating: 1000},
			}
			So(verifyLeaderboardConsistency(board, 2), ShouldNotBeNil)
		})

		Convey("Missing rows fail", func() {
			So(verifyLeaderboardConsistency(nil, 2), ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a small season", t, func() {
		cfg := smallConfig()
		cfg.OutputFile = filepath.Join(t.TempDir(), "report.json")
		runner, err := New(cfg)
		So(err, ShouldBeNil)

		report, err := runner.Run(context.Background())

		Convey("Then it completes with a consistent table", func() {
			So(err, ShouldBeNil)
			So(report.Leaderboard, ShouldHaveLength, cfg.Teams)
			So(report.Stats.Failures, ShouldEqual, int64(0))
			So(report.Stats.Requests, ShouldBeGreaterThan, 0)
			So(report.Stats.Accepted+report.Stats.Rejected, ShouldBeLessThanOrEqualTo, report.Stats.Requests)
			So(report.Stats.Finalized, ShouldBeLessThanOrEqualTo, report.Stats.Scheduled)
			So(report.Stats.Notifications, ShouldBeGreaterThan, 0)
		})

		Convey("Then the report is written as JSON", func() {
			data, err := os.ReadFile(cfg.OutputFile)
			So(err, ShouldBeNil)
			var decoded Report
			So(json.Unmarshal(data, &decoded), ShouldBeNil)
			So(decoded.Teams, ShouldEqual, cfg.Teams)
			So(decoded.Leaderboard, ShouldHaveLength, cfg.Teams)
		})
	})

	Convey("Given a cancelled context", t, func() {
		runner, err := New(smallConfig())
		So(err, ShouldBeNil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("Then the season stops with an error", func() {
			_, err := runner.Run(ctx)
			So(err, ShouldNotBeNil)
		})
	})
}

package simulate

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/futsalrank/internal/adapters/repository"
	service "github.com/okian/futsalrank/internal/app"
	"github.com/okian/futsalrank/internal/domain/model"
)

// ratingTolerance absorbs the leaderboard's fixed-point rounding.
const ratingTolerance = 0.01

// verify checks that the leaderboard agrees with stored teams and that team
// records add up to the completed competitive matches.
func verify(ctx context.Context, svc *service.Service, store *repository.MemoryStore) error {
	teams, err := store.ListTeams(ctx, model.TeamFilter{})
	if err != nil {
		return fmt.Errorf("list teams: %w", err)
	}
	board, err := svc.Leaderboard(ctx, len(teams))
	if err != nil {
		return fmt.Errorf("read leaderboard: %w", err)
	}
	if err := verifyLeaderboardConsistency(board, len(teams)); err != nil {
		return err
	}

	byID := make(map[model.TeamID]*model.Team, len(teams))
	played := 0
	for _, t := range teams {
		byID[t.ID] = t
		played += t.MatchesPlayed
		if t.Wins > t.MatchesPlayed {
			return fmt.Errorf("team %s has %d wins in %d matches", t.ID, t.Wins, t.MatchesPlayed)
		}
	}
	for _, row := range board {
		t, ok := byID[row.TeamID]
		if !ok {
			return fmt.Errorf("leaderboard lists unknown team %s", row.TeamID)
		}
		if math.Abs(t.Rating-row.Rating) > ratingTolerance {
			return fmt.Errorf("team %s rated %.2f in store but %.2f on leaderboard", t.ID, t.Rating, row.Rating)
		}
	}

	competitive, err := store.ListCompletedMatches(ctx, model.MatchCompetitive)
	if err != nil {
		return fmt.Errorf("list completed matches: %w", err)
	}
	if played != 2*len(competitive) {
		return fmt.Errorf("teams played %d matches but %d competitive matches completed", played, len(competitive))
	}
	return nil
}

// verifyLeaderboardConsistency checks ordering and dense ranks.
func verifyLeaderboardConsistency(board []model.Standing, want int) error {
	if len(board) != want {
		return fmt.Errorf("leaderboard has %d rows, want %d", len(board), want)
	}
	for i, row := range board {
		if i == 0 {
			if row.Rank != 1 {
				return fmt.Errorf("first row has rank %d", row.Rank)
			}
			continue
		}
		prev := board[i-1]
		switch {
		case prev.Rating < row.Rating:
			return fmt.Errorf("leaderboard not sorted at row %d: %.2f before %.2f", i, prev.Rating, row.Rating)
		case prev.Rating == row.Rating && prev.Rank != row.Rank:
			return fmt.Errorf("tied teams %s and %s have ranks %d and %d", prev.TeamID, row.TeamID, prev.Rank, row.Rank)
		case prev.Rating > row.Rating && row.Rank != prev.Rank+1:
			return fmt.Errorf("rank gap at row %d: %d after %d", i, row.Rank, prev.Rank)
		}
	}
	return nil
}

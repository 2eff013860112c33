package simulate

import (
	"fmt"
	"math/rand/v2"

	"github.com/okian/futsalrank/internal/domain/model"
)

const (
	minPreferred = 2
	maxPreferred = 3
	maxStrength  = 4
	basePrice    = 40.0
	priceStep    = 5.0
)

// roster is a generated team with the hidden strength used to draw scores.
type roster struct {
	team     model.Team
	strength int
}

// venueOwner is the account that owns venue i.
func venueOwner(i int) string { return fmt.Sprintf("owner-%02d", i) }

func generateVenues(n int) []model.Venue {
	venues := make([]model.Venue, n)
	for i := range venues {
		venues[i] = model.Venue{
			ID:          fmt.Sprintf("venue-%02d", i),
			Name:        fmt.Sprintf("Ground %d", i+1),
			OwnerID:     venueOwner(i),
			HourlyPrice: basePrice + priceStep*float64(i%4),
		}
	}
	return venues
}

// generateTeams gives every team two or three distinct preferred venues and,
// for every other team, a home venue.
func generateTeams(rng *rand.Rand, n int, venues []model.Venue) []roster {
	teams := make([]roster, n)
	for i := range teams {
		count := minPreferred + rng.IntN(maxPreferred-minPreferred+1)
		if count > len(venues) {
			count = len(venues)
		}
		perm := rng.Perm(len(venues))
		prefs := make([]model.VenueID, count)
		for j := range prefs {
			prefs[j] = venues[perm[j]].ID
		}
		t := model.Team{
			ID:              fmt.Sprintf("team-%03d", i),
			Name:            fmt.Sprintf("Team %d", i+1),
			OwnerID:         fmt.Sprintf("captain-%03d", i),
			PreferredVenues: prefs,
		}
		if i%2 == 0 {
			t.HomeVenue = prefs[0]
		}
		teams[i] = roster{team: t, strength: rng.IntN(maxStrength + 1)}
	}
	return teams
}

// drawScore returns goals for both sides. Stronger sides score more on average.
func drawScore(rng *rand.Rand, strengthA, strengthB int) (int, int) {
	return rng.IntN(2 + strengthA), rng.IntN(2 + strengthB)
}

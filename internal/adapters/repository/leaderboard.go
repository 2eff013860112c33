package repository

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/okian/futsalrank/internal/domain/model"
)

// Treap-backed rating leaderboard.
//
// Ordering: rating DESC, then team id ASC. "less" means ranks earlier, so an
// in-order walk yields the table from best to worst. Ratings are kept in
// fixed point (hundredths) because the updater rounds to two decimals.

const ratingScale = 100

type ratingFP int64

func toFixedPoint(x float64) ratingFP {
	switch {
	case math.IsNaN(x):
		return 0
	case x*ratingScale >= float64(math.MaxInt64):
		return ratingFP(math.MaxInt64)
	case x*ratingScale <= float64(math.MinInt64):
		return ratingFP(math.MinInt64)
	}
	return ratingFP(math.Round(x * ratingScale))
}

func toFloat(x ratingFP) float64 {
	return float64(x) / ratingScale
}

// treap node
type node struct {
	id     string
	rating ratingFP
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aRating, aID) ranks before (bRating, bID).
func less(aRating ratingFP, aID string, bRating ratingFP, bID string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, fresh *node) *node {
	if n == nil {
		return fresh
	}
	if less(fresh.rating, fresh.id, n.rating, n.id) {
		n.left = insert(n.left, fresh)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, fresh)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, rating ratingFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case rating == n.rating && id == n.id:
		// Rotate the higher-priority child up until n is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, rating)
		}
	case less(rating, id, n.rating, n.id):
		n.left = deleteNode(n.left, id, rating)
	default:
		n.right = deleteNode(n.right, id, rating)
	}
	fix(n)
	return n
}

// position returns the zero-based in-order index of (id, rating).
func position(n *node, id string, rating ratingFP) int {
	pos := 0
	for n != nil {
		switch {
		case rating == n.rating && id == n.id:
			return pos + nsize(n.left)
		case less(rating, id, n.rating, n.id):
			n = n.left
		default:
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return -1
}

// walk visits nodes in rank order until fn returns false.
func walk(n *node, fn func(*node) bool) bool {
	if n == nil {
		return true
	}
	if !walk(n.left, fn) {
		return false
	}
	if !fn(n) {
		return false
	}
	return walk(n.right, fn)
}

// LeaderboardOption configures a Leaderboard.
type LeaderboardOption func(*Leaderboard)

// WithSeed fixes the priority source so tree shapes are reproducible.
func WithSeed(seed uint64) LeaderboardOption {
	return func(l *Leaderboard) {
		l.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // priorities only
	}
}

// Leaderboard ranks teams by rating. Equal ratings share a rank and ranks are
// dense (1, 1, 2). A second treap holds one node per distinct rating so a
// team's dense rank is a position lookup.
type Leaderboard struct {
	mu       sync.RWMutex
	root     *node
	distinct *node
	counts   map[ratingFP]int
	byID     map[string]ratingFP
	rng      *rand.Rand
}

// NewLeaderboard creates an empty leaderboard.
func NewLeaderboard(opts ...LeaderboardOption) *Leaderboard {
	l := &Leaderboard{
		byID:   make(map[string]ratingFP),
		counts: make(map[ratingFP]int),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // priorities only
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Set inserts or moves a team to rating in O(log n) expected time.
func (l *Leaderboard) Set(_ context.Context, teamID model.TeamID, rating float64) {
	r := toFixedPoint(rating)
	l.mu.Lock()
	defer l.mu.Unlock()
	if old, ok := l.byID[teamID]; ok {
		if old == r {
			return
		}
		l.root = deleteNode(l.root, teamID, old)
		l.release(old)
	}
	l.byID[teamID] = r
	l.root = insert(l.root, &node{id: teamID, rating: r, prio: l.rng.Uint64(), size: 1})
	l.counts[r]++
	if l.counts[r] == 1 {
		l.distinct = insert(l.distinct, &node{rating: r, prio: l.rng.Uint64(), size: 1})
	}
}

// release drops one team from rating r. l.mu must be held.
func (l *Leaderboard) release(r ratingFP) {
	l.counts[r]--
	if l.counts[r] <= 0 {
		delete(l.counts, r)
		l.distinct = deleteNode(l.distinct, "", r)
	}
}

// Remove drops a team. Unknown ids are ignored.
func (l *Leaderboard) Remove(_ context.Context, teamID model.TeamID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if old, ok := l.byID[teamID]; ok {
		l.root = deleteNode(l.root, teamID, old)
		l.release(old)
		delete(l.byID, teamID)
	}
}

// Top returns the first n rows.
func (l *Leaderboard) Top(_ context.Context, n int) ([]model.Standing, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.Standing, 0, min(n, len(l.byID)))
	rank := 0
	var prev ratingFP
	walk(l.root, func(nd *node) bool {
		if rank == 0 || nd.rating != prev {
			rank++
			prev = nd.rating
		}
		out = append(out, model.Standing{Rank: rank, TeamID: nd.id, Rating: toFloat(nd.rating)})
		return len(out) < n
	})
	return out, nil
}

// Standing returns one team's row in O(log n) expected time.
func (l *Leaderboard) Standing(_ context.Context, teamID model.TeamID) (model.Standing, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.byID[teamID]
	if !ok {
		return model.Standing{}, model.WrapKind("leaderboard.Standing", model.ErrNotFound, fmt.Errorf("team %q", teamID))
	}
	// Dense rank: distinct ratings strictly above r, plus one.
	rank := position(l.distinct, "", r)
	return model.Standing{Rank: rank + 1, TeamID: teamID, Rating: toFloat(r)}, nil
}

// Position returns the zero-based row index of a team, or -1.
func (l *Leaderboard) Position(_ context.Context, teamID model.TeamID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.byID[teamID]
	if !ok {
		return -1
	}
	return position(l.root, teamID, r)
}

// Count returns the number of ranked teams.
func (l *Leaderboard) Count(_ context.Context) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byID)
}

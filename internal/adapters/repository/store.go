// Package repository holds in-memory implementations of the engine's storage
// collaborators and the rating leaderboard.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/pkg/metrics"
)

type pairKey struct {
	rejecting model.TeamID
	rejected  model.TeamID
}

// MemoryStore keeps teams, venues, matches and rejection records in maps.
// Every read returns a copy. Serialization of multi-step operations is the
// caller's job through Lock.
type MemoryStore struct {
	*KeyedLocker

	mu         sync.RWMutex
	teams      map[model.TeamID]*model.Team
	venues     map[model.VenueID]*model.Venue
	matches    map[model.MatchID]*model.Match
	byDate     map[string]map[model.MatchID]struct{}
	rejections map[pairKey]model.RejectionRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		KeyedLocker: NewKeyedLocker(),
		teams:       make(map[model.TeamID]*model.Team),
		venues:      make(map[model.VenueID]*model.Venue),
		matches:     make(map[model.MatchID]*model.Match),
		byDate:      make(map[string]map[model.MatchID]struct{}),
		rejections:  make(map[pairKey]model.RejectionRecord),
	}
}

func notFound(op, what, id string) error {
	return model.WrapKind(op, model.ErrNotFound, fmt.Errorf("%s %q", what, id))
}

func checkCtx(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return model.Wrap(op, err)
	}
	return nil
}

// LoadTeam returns a copy of the team.
func (s *MemoryStore) LoadTeam(ctx context.Context, id model.TeamID) (*model.Team, error) {
	const op = "repository.LoadTeam"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return nil, notFound(op, "team", id)
	}
	return t.Clone(), nil
}

// SaveTeam inserts or replaces the team.
func (s *MemoryStore) SaveTeam(ctx context.Context, t *model.Team) error {
	const op = "repository.SaveTeam"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if t == nil || t.ID == "" {
		return model.Invalidf(op, "team id is required")
	}
	s.mu.Lock()
	_, existed := s.teams[t.ID]
	s.teams[t.ID] = t.Clone()
	count := len(s.teams)
	s.mu.Unlock()

	if !existed {
		metrics.UpdateTotalTeams(count)
	}
	return nil
}

// ListTeams returns teams passing f, sorted by id.
func (s *MemoryStore) ListTeams(ctx context.Context, f model.TeamFilter) ([]*model.Team, error) {
	if err := checkCtx(ctx, "repository.ListTeams"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*model.Team, 0, len(s.teams))
	for _, t := range s.teams {
		if f.Match(t) {
			out = append(out, t.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveVenue inserts or replaces a venue. Venues are owned outside the engine;
// this exists for seeding.
func (s *MemoryStore) SaveVenue(ctx context.Context, v *model.Venue) error {
	const op = "repository.SaveVenue"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if v == nil || v.ID == "" {
		return model.Invalidf(op, "venue id is required")
	}
	c := *v
	s.mu.Lock()
	s.venues[v.ID] = &c
	s.mu.Unlock()
	return nil
}

// LoadVenue returns a copy of the venue.
func (s *MemoryStore) LoadVenue(ctx context.Context, id model.VenueID) (*model.Venue, error) {
	const op = "repository.LoadVenue"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.venues[id]
	if !ok {
		return nil, notFound(op, "venue", id)
	}
	c := *v
	return &c, nil
}

// LoadMatch returns a copy of the match.
func (s *MemoryStore) LoadMatch(ctx context.Context, id model.MatchID) (*model.Match, error) {
	const op = "repository.LoadMatch"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, notFound(op, "match", id)
	}
	return m.Clone(), nil
}

// SaveMatch inserts or replaces a match and keeps the date index current.
func (s *MemoryStore) SaveMatch(ctx context.Context, m *model.Match) error {
	const op = "repository.SaveMatch"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if m == nil || m.ID == "" {
		return model.Invalidf(op, "match id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putMatch(m)
	return nil
}

// CommitResult stores the completed match together with the updated teams in
// one step. Either everything is written or nothing is.
func (s *MemoryStore) CommitResult(ctx context.Context, m *model.Match, teams ...*model.Team) error {
	const op = "repository.CommitResult"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if m == nil || m.ID == "" {
		return model.Invalidf(op, "match id is required")
	}
	for _, t := range teams {
		if t == nil || t.ID == "" {
			return model.Invalidf(op, "team id is required")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range teams {
		if _, ok := s.teams[t.ID]; !ok {
			return notFound(op, "team", t.ID)
		}
	}
	s.putMatch(m)
	for _, t := range teams {
		s.teams[t.ID] = t.Clone()
	}
	return nil
}

// putMatch writes m and moves it in the date index. s.mu must be held.
func (s *MemoryStore) putMatch(m *model.Match) {
	if old, ok := s.matches[m.ID]; ok && !old.ScheduledDate.IsZero() {
		if ids := s.byDate[old.ScheduledDate.String()]; ids != nil {
			delete(ids, m.ID)
		}
	}
	s.matches[m.ID] = m.Clone()
	if !m.ScheduledDate.IsZero() {
		day := m.ScheduledDate.String()
		if s.byDate[day] == nil {
			s.byDate[day] = make(map[model.MatchID]struct{})
		}
		s.byDate[day][m.ID] = struct{}{}
	}
}

// ListCompletedMatches returns completed matches of the given type, or of any
// type when typ is empty, ordered by completion time.
func (s *MemoryStore) ListCompletedMatches(ctx context.Context, typ model.MatchType) ([]model.Match, error) {
	if err := checkCtx(ctx, "repository.ListCompletedMatches"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.Match, 0, len(s.matches))
	for _, m := range s.matches {
		if !m.Completed || (typ != "" && m.Type != typ) {
			continue
		}
		out = append(out, *m.Clone())
	}
	s.mu.RUnlock()
	sortByCompletion(out)
	return out, nil
}

// ListMatchesOnDate returns every match scheduled on day.
func (s *MemoryStore) ListMatchesOnDate(ctx context.Context, day model.Date) ([]model.Match, error) {
	if err := checkCtx(ctx, "repository.ListMatchesOnDate"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	ids := s.byDate[day.String()]
	out := make([]model.Match, 0, len(ids))
	for id := range ids {
		out = append(out, *s.matches[id].Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindOpenMatchBetween returns a match between a and b, in either direction,
// that is neither completed nor rejected.
func (s *MemoryStore) FindOpenMatchBetween(ctx context.Context, a, b model.TeamID) (*model.Match, bool, error) {
	if err := checkCtx(ctx, "repository.FindOpenMatchBetween"); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.matches {
		if m.Between(a, b) && m.Open() {
			return m.Clone(), true, nil
		}
	}
	return nil, false, nil
}

// ListMatchesForTeam returns every match the team plays in, newest first.
func (s *MemoryStore) ListMatchesForTeam(ctx context.Context, team model.TeamID) ([]model.Match, error) {
	if err := checkCtx(ctx, "repository.ListMatchesForTeam"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.Match, 0)
	for _, m := range s.matches {
		if m.Involves(team) {
			out = append(out, *m.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// FindUncleared returns the uncleared record for the ordered pair.
func (s *MemoryStore) FindUncleared(ctx context.Context, rejecting, rejected model.TeamID) (model.RejectionRecord, bool, error) {
	if err := checkCtx(ctx, "repository.FindUncleared"); err != nil {
		return model.RejectionRecord{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rejections[pairKey{rejecting, rejected}]
	if !ok || rec.Cleared {
		return model.RejectionRecord{}, false, nil
	}
	return rec, true, nil
}

// SaveRejection stores rec as the record of its ordered pair.
func (s *MemoryStore) SaveRejection(ctx context.Context, rec model.RejectionRecord) error {
	const op = "repository.SaveRejection"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	if rec.Rejecting == "" || rec.Rejected == "" {
		return model.Invalidf(op, "both teams are required")
	}
	s.mu.Lock()
	s.rejections[pairKey{rec.Rejecting, rec.Rejected}] = rec
	s.mu.Unlock()
	return nil
}

// ListUnclearedBetween returns uncleared records for both directions of a/b.
func (s *MemoryStore) ListUnclearedBetween(ctx context.Context, a, b model.TeamID) ([]model.RejectionRecord, error) {
	if err := checkCtx(ctx, "repository.ListUnclearedBetween"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.RejectionRecord, 0, 2)
	for _, k := range []pairKey{{a, b}, {b, a}} {
		if rec, ok := s.rejections[k]; ok && !rec.Cleared {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Counts reports the number of stored entities for the stats endpoint.
func (s *MemoryStore) Counts() (teams, venues, matches int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.teams), len(s.venues), len(s.matches)
}

func sortByCompletion(ms []model.Match) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].CompletedAt.Equal(ms[j].CompletedAt) {
			return ms[i].CompletedAt.Before(ms[j].CompletedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}

// Package service orchestrates the matchmaking engine: recommendations, the
// request/response flow, scheduling and result finalization. Every operation
// runs under the storage collaborator's keyed locks.
package service

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/futsalrank/internal/adapters/notify"
	"github.com/okian/futsalrank/internal/adapters/repository"
	"github.com/okian/futsalrank/internal/domain/cooldown"
	"github.com/okian/futsalrank/internal/domain/hybrid"
	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/internal/domain/rating"
	"github.com/okian/futsalrank/internal/domain/scheduling"
	"github.com/okian/futsalrank/pkg/logger"
	"github.com/okian/futsalrank/pkg/metrics"
)

const (
	defaultCandidatePool  = 10
	defaultRecommendLimit = 5
)

// TeamStore persists teams and their competitive record.
type TeamStore interface {
	LoadTeam(ctx context.Context, id model.TeamID) (*model.Team, error)
	SaveTeam(ctx context.Context, t *model.Team) error
	ListTeams(ctx context.Context, f model.TeamFilter) ([]*model.Team, error)
}

// MatchStore persists matches. A pending match is the match request.
type MatchStore interface {
	LoadMatch(ctx context.Context, id model.MatchID) (*model.Match, error)
	SaveMatch(ctx context.Context, m *model.Match) error
	ListCompletedMatches(ctx context.Context, typ model.MatchType) ([]model.Match, error)
	ListMatchesOnDate(ctx context.Context, day model.Date) ([]model.Match, error)
	FindOpenMatchBetween(ctx context.Context, a, b model.TeamID) (*model.Match, bool, error)
	ListMatchesForTeam(ctx context.Context, team model.TeamID) ([]model.Match, error)
	// CommitResult writes a completed match and the teams it changed atomically.
	CommitResult(ctx context.Context, m *model.Match, teams ...*model.Team) error
}

// VenueStore reads venues. Venues are managed elsewhere.
type VenueStore interface {
	LoadVenue(ctx context.Context, id model.VenueID) (*model.Venue, error)
}

// Store is the full storage collaborator.
type Store interface {
	TeamStore
	MatchStore
	VenueStore
	cooldown.Store
	cooldown.Locker
}

// Publisher delivers notifications on a best effort basis. A false return
// means the notification was dropped.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) bool
}

// Leaderboard is the rating index behind standings.
type Leaderboard interface {
	Set(ctx context.Context, teamID model.TeamID, rating float64)
	Top(ctx context.Context, n int) ([]model.Standing, error)
	Standing(ctx context.Context, teamID model.TeamID) (model.Standing, error)
	Count(ctx context.Context) int
}

// Service implements the engine operations.
type Service struct {
	store       Store
	ledger      *cooldown.Ledger
	updater     *rating.Updater
	resolver    *scheduling.Resolver
	leaderboard Leaderboard
	publisher   Publisher
	clock       clockwork.Clock
	logger      logger.Logger

	alpha          float64
	candidatePool  int
	recommendLimit int
	cooldownPeriod time.Duration
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for timestamps, cooldowns and "today".
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithAlpha sets the collaborative weight of the hybrid ranking.
func WithAlpha(alpha float64) Option {
	return func(s *Service) {
		s.alpha = alpha
	}
}

// WithCandidatePool sets how many candidates each recommender contributes
// before merging.
func WithCandidatePool(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.candidatePool = n
		}
	}
}

// WithRecommendLimit sets the number of recommendations returned when the
// caller does not ask for a count.
func WithRecommendLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recommendLimit = n
		}
	}
}

// WithCooldownPeriod sets how long a rejection blocks new requests.
func WithCooldownPeriod(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cooldownPeriod = d
		}
	}
}

// WithPublisher sets the notification publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLeaderboard sets the rating index.
func WithLeaderboard(l Leaderboard) Option {
	return func(s *Service) {
		if l != nil {
			s.leaderboard = l
		}
	}
}

// WithUpdater sets the rating updater.
func WithUpdater(u *rating.Updater) Option {
	return func(s *Service) {
		if u != nil {
			s.updater = u
		}
	}
}

// New constructs a Service over store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		updater:        rating.NewUpdater(),
		resolver:       scheduling.NewResolver(),
		publisher:      notify.Discard{},
		clock:          clockwork.NewRealClock(),
		logger:         logger.Nop(),
		alpha:          hybrid.DefaultAlpha,
		candidatePool:  defaultCandidatePool,
		recommendLimit: defaultRecommendLimit,
		cooldownPeriod: cooldown.DefaultPeriod,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.leaderboard == nil {
		s.leaderboard = repository.NewLeaderboard()
	}
	s.logger = s.logger.Named("engine")
	s.ledger = cooldown.NewLedger(store, store,
		cooldown.WithPeriod(s.cooldownPeriod),
		cooldown.WithClock(s.clock),
	)
	return s
}

// RebuildLeaderboard indexes every stored team. Call it once after seeding a
// store that was filled outside the service.
func (s *Service) RebuildLeaderboard(ctx context.Context) error {
	teams, err := s.store.ListTeams(ctx, model.TeamFilter{})
	if err != nil {
		return model.Wrap("service.RebuildLeaderboard", err)
	}
	for _, t := range teams {
		s.leaderboard.Set(ctx, t.ID, t.Rating)
	}
	s.logger.Info(ctx, "leaderboard rebuilt", logger.Int("teams", len(teams)))
	return nil
}

// Stats returns counters for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"rankedTeams":    s.leaderboard.Count(ctx),
		"hybridAlpha":    s.alpha,
		"candidatePool":  s.candidatePool,
		"cooldownPeriod": s.cooldownPeriod.String(),
	}
	if c, ok := s.store.(interface{ Counts() (int, int, int) }); ok {
		teams, venues, matches := c.Counts()
		stats["teams"] = teams
		stats["venues"] = venues
		stats["matches"] = matches
	}
	if p, ok := s.publisher.(interface{ Pending(context.Context) int }); ok {
		pending := p.Pending(ctx)
		stats["pendingNotifications"] = pending
		metrics.UpdateQueueSize(pending)
	}
	return stats
}

func (s *Service) today() model.Date { return model.DateOf(s.clock.Now()) }

// lock takes keys in sorted order through the store.
func (s *Service) lock(ctx context.Context, op string, keys ...string) (func(), error) {
	unlock, err := s.store.Lock(ctx, keys...)
	if err != nil {
		return nil, model.Wrap(op, err)
	}
	return unlock, nil
}

func teamKey(id model.TeamID) string { return "team:" + id }

func venueDayKey(id model.VenueID, d model.Date) string { return "venue:" + id + ":" + d.String() }

func teamDayKey(id model.TeamID, d model.Date) string { return "team-day:" + id + ":" + d.String() }

// observe records latency and error metrics for op and logs failures.
func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		kind := model.KindName(err)
		metrics.RecordOperationError(op, kind)
		if kind == "internal" {
			s.logger.Error(ctx, "operation failed", logger.String("op", op), logger.Error(err))
		} else {
			s.logger.Debug(ctx, "operation refused", logger.String("op", op), logger.String("kind", kind), logger.Error(err))
		}
	}
	metrics.RecordOperation(op, outcome, float64(s.clock.Since(start).Microseconds())/1000)
}

func (s *Service) publish(ctx context.Context, n model.Notification) {
	if !s.publisher.Publish(ctx, n) {
		s.logger.Warn(ctx, "notification not published",
			logger.String("kind", string(n.Kind)),
			logger.String("matchID", n.MatchID),
		)
	}
}

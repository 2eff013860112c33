package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/futsalrank/internal/adapters/notify"
	"github.com/okian/futsalrank/internal/adapters/repository"
	service "github.com/okian/futsalrank/internal/app"
	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/pkg/logger"
)

// scheduleDays is how many consecutive days a fixture tries before giving up.
const scheduleDays = 3

// Report is the outcome of a season.
type Report struct {
	Teams       int              `json:"teams"`
	Venues      int              `json:"venues"`
	Rounds      int              `json:"rounds"`
	Seed        uint64           `json:"seed"`
	Stats       Summary          `json:"stats"`
	Leaderboard []model.Standing `json:"leaderboard"`
	Duration    string           `json:"duration"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// Runner plays one season against a fresh in-memory engine.
type Runner struct {
	cfg    Config
	logger logger.Logger
	clock  *clockwork.FakeClock
	store  *repository.MemoryStore
	svc    *service.Service
	stats  *Stats

	venues []model.Venue
	teams  []roster
	byID   map[model.TeamID]roster
}

// New validates cfg and builds a runner.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:    cfg,
		logger: logger.Nop(),
		clock:  clockwork.NewFakeClockAt(cfg.Start),
		store:  repository.NewMemoryStore(),
		stats:  &Stats{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (c Config) validate() error {
	switch {
	case c.Teams < 2:
		return fmt.Errorf("teams must be at least 2, got %d", c.Teams)
	case c.Venues < 2:
		return fmt.Errorf("venues must be at least 2, got %d", c.Venues)
	case c.Rounds < 1:
		return fmt.Errorf("rounds must be positive, got %d", c.Rounds)
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.AcceptRate < 0 || c.AcceptRate > 1:
		return fmt.Errorf("accept rate must be within [0, 1], got %v", c.AcceptRate)
	case c.CompetitiveRate < 0 || c.CompetitiveRate > 1:
		return fmt.Errorf("competitive rate must be within [0, 1], got %v", c.CompetitiveRate)
	case c.Start.IsZero():
		return errors.New("start time is required")
	}
	return nil
}

// Run executes the season: setup, rounds, verification and the final report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	began := time.Now()
	r.logger.Info(ctx, "starting season",
		logger.Int("teams", r.cfg.Teams),
		logger.Int("venues", r.cfg.Venues),
		logger.Int("rounds", r.cfg.Rounds),
		logger.Int("workers", r.cfg.Workers),
	)

	dispatcher := notify.NewDispatcher(notify.Config{QueueSize: 4 * r.cfg.Teams, Workers: 2},
		countingNotifier{stats: r.stats},
		notify.WithLogger(r.logger),
		notify.WithClock(r.clock),
	)
	dispatcher.Start(ctx)

	opts := []service.Option{
		service.WithLogger(r.logger),
		service.WithClock(r.clock),
		service.WithPublisher(dispatcher),
		service.WithLeaderboard(repository.NewLeaderboard(repository.WithSeed(r.cfg.Seed))),
	}
	if r.cfg.Cooldown > 0 {
		opts = append(opts, service.WithCooldownPeriod(r.cfg.Cooldown))
	}
	r.svc = service.New(r.store, opts...)

	if err := r.setup(ctx); err != nil {
		_ = dispatcher.Shutdown(ctx)
		return nil, err
	}
	for round := 0; round < r.cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			_ = dispatcher.Shutdown(ctx)
			return nil, fmt.Errorf("round %d: %w", round, err)
		}
		r.playRound(ctx, round)
		r.clock.Advance(24 * time.Hour)
	}
	if err := dispatcher.Shutdown(ctx); err != nil {
		r.logger.Warn(ctx, "notification dispatcher did not drain", logger.Error(err))
	}

	if err := verify(ctx, r.svc, r.store); err != nil {
		return nil, err
	}
	board, err := r.svc.Leaderboard(ctx, r.cfg.Teams)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	report := &Report{
		Teams:       r.cfg.Teams,
		Venues:      r.cfg.Venues,
		Rounds:      r.cfg.Rounds,
		Seed:        r.cfg.Seed,
		Stats:       r.stats.Snapshot(),
		Leaderboard: board,
		Duration:    time.Since(began).String(),
	}
	r.displayFinalStats(ctx, report)
	if r.cfg.OutputFile != "" {
		if err := saveReport(report, r.cfg.OutputFile); err != nil {
			return report, err
		}
	}
	return report, nil
}

// setup stores the venues and registers the teams through the engine.
func (r *Runner) setup(ctx context.Context) error {
	rng := rand.New(rand.NewPCG(r.cfg.Seed, 0))
	r.venues = generateVenues(r.cfg.Venues)
	for i := range r.venues {
		if err := r.store.SaveVenue(ctx, &r.venues[i]); err != nil {
			return fmt.Errorf("save venue %s: %w", r.venues[i].ID, err)
		}
	}
	r.teams = generateTeams(rng, r.cfg.Teams, r.venues)
	r.byID = make(map[model.TeamID]roster, len(r.teams))
	for _, ro := range r.teams {
		t := ro.team
		if _, err := r.svc.RegisterTeam(ctx, service.RegisterTeamInput{
			ID:              t.ID,
			Name:            t.Name,
			OwnerID:         t.OwnerID,
			PreferredVenues: t.PreferredVenues,
			HomeVenue:       t.HomeVenue,
		}); err != nil {
			return fmt.Errorf("register %s: %w", t.ID, err)
		}
		r.byID[t.ID] = ro
	}
	r.logger.Info(ctx, "season setup complete", logger.Int("teams", len(r.byID)), logger.Int("venues", len(r.venues)))
	return nil
}

// playRound lets every team look for one fixture, spread across workers.
func (r *Runner) playRound(ctx context.Context, round int) {
	jobs := make(chan int, len(r.teams))
	for i := range r.teams {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rng := rand.New(rand.NewPCG(r.cfg.Seed, uint64(round*len(r.teams)+i+1)))
				r.playFixture(ctx, r.teams[i], model.DateOf(r.clock.Now()), rng)
			}
		}()
	}
	wg.Wait()
	r.logger.Debug(ctx, "round complete", logger.Int("round", round+1), logger.Any("stats", r.stats.Snapshot()))
}

// playFixture walks one requester through recommend, request, response,
// scheduling and the result.
func (r *Runner) playFixture(ctx context.Context, home roster, day model.Date, rng *rand.Rand) {
	recs, err := r.svc.RecommendOpponents(ctx, home.team.ID, r.cfg.TopN)
	if err != nil {
		r.fail(ctx, "recommend", err)
		return
	}
	if len(recs) == 0 {
		return
	}
	opponent := recs[0].TeamID
	for _, rec := range recs {
		if !rec.RecentlyRejected {
			opponent = rec.TeamID
			break
		}
	}

	typ := model.MatchFriendly
	if rng.Float64() < r.cfg.CompetitiveRate {
		typ = model.MatchCompetitive
	}
	r.stats.Requests.Add(1)
	matchID, err := r.svc.SubmitMatchRequest(ctx, service.RequestInput{From: home.team.ID, To: opponent, Type: typ})
	switch {
	case errors.Is(err, model.ErrCooldownActive):
		r.stats.CooldownBlocked.Add(1)
		return
	case errors.Is(err, model.ErrOpenMatchExists):
		r.stats.AlreadyOpen.Add(1)
		return
	case err != nil:
		r.fail(ctx, "request", err)
		return
	}

	decision := model.DecisionReject
	if rng.Float64() < r.cfg.AcceptRate {
		decision = model.DecisionAccept
	}
	if _, err := r.svc.RespondToRequest(ctx, matchID, opponent, decision); err != nil {
		r.fail(ctx, "respond", err)
		return
	}
	if decision == model.DecisionReject {
		r.stats.Rejected.Add(1)
		return
	}
	r.stats.Accepted.Add(1)

	booked, ok := r.schedule(ctx, matchID, home.team.ID, day)
	if !ok {
		return
	}
	goalsA, goalsB := drawScore(rng, home.strength, r.byID[opponent].strength)
	res, err := r.svc.FinalizeMatch(ctx, service.FinalizeInput{
		MatchID: matchID,
		ActorID: r.ownerOf(booked.VenueID),
		GoalsA:  goalsA,
		GoalsB:  goalsB,
	})
	if err != nil {
		r.fail(ctx, "finalize", err)
		return
	}
	r.stats.Finalized.Add(1)
	if r.cfg.Verbose {
		r.logger.Info(ctx, "fixture played",
			logger.String("home", home.team.ID),
			logger.String("away", opponent),
			logger.String("type", string(typ)),
			logger.String("venue", booked.VenueName),
			logger.String("date", booked.Date.String()),
			logger.Int("goalsHome", goalsA),
			logger.Int("goalsAway", goalsB),
			logger.Float64("deltaHome", res.DeltaA),
			logger.Float64("deltaAway", res.DeltaB),
		)
	}
}

// schedule tries day and the following days until a slot is free.
func (r *Runner) schedule(ctx context.Context, matchID model.MatchID, actor model.TeamID, day model.Date) (service.ScheduleResult, bool) {
	for i := 0; i < scheduleDays; i++ {
		res, err := r.svc.ScheduleMatch(ctx, service.ScheduleInput{
			MatchID:     matchID,
			ActorTeamID: actor,
			Date:        day.AddDays(i).String(),
		})
		switch {
		case err == nil:
			r.stats.Scheduled.Add(1)
			return res, true
		case errors.Is(err, model.ErrNoVenue):
			r.stats.NoVenue.Add(1)
			return service.ScheduleResult{}, false
		case errors.Is(err, model.ErrConflict):
			r.stats.ScheduleConflicts.Add(1)
		default:
			r.fail(ctx, "schedule", err)
			return service.ScheduleResult{}, false
		}
	}
	return service.ScheduleResult{}, false
}

func (r *Runner) ownerOf(id model.VenueID) string {
	for _, v := range r.venues {
		if v.ID == id {
			return v.OwnerID
		}
	}
	return ""
}

func (r *Runner) fail(ctx context.Context, step string, err error) {
	r.stats.Failures.Add(1)
	r.logger.Warn(ctx, "fixture step failed",
		logger.String("step", step),
		logger.String("kind", model.KindName(err)),
		logger.Error(err),
	)
}

// displayFinalStats logs the season summary and the top of the table.
func (r *Runner) displayFinalStats(ctx context.Context, rep *Report) {
	s := rep.Stats
	r.logger.Info(ctx, "season complete",
		logger.String("duration", rep.Duration),
		logger.Any("requests", s.Requests),
		logger.Any("accepted", s.Accepted),
		logger.Any("rejected", s.Rejected),
		logger.Any("cooldownBlocked", s.CooldownBlocked),
		logger.Any("alreadyOpen", s.AlreadyOpen),
		logger.Any("scheduled", s.Scheduled),
		logger.Any("scheduleConflicts", s.ScheduleConflicts),
		logger.Any("finalized", s.Finalized),
		logger.Any("notifications", s.Notifications),
		logger.Any("failures", s.Failures),
	)
	top := rep.Leaderboard
	if len(top) > 10 {
		top = top[:10]
	}
	for _, row := range top {
		r.logger.Info(ctx, "standing",
			logger.Int("rank", row.Rank),
			logger.String("team", row.TeamID),
			logger.Float64("rating", row.Rating),
		)
	}
}

func saveReport(rep *Report, filename string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("write report %s: %w", filename, err)
	}
	return nil
}

// countingNotifier counts delivered notifications.
type countingNotifier struct{ stats *Stats }

func (c countingNotifier) Notify(context.Context, model.Notification) error {
	c.stats.Notifications.Add(1)
	return nil
}

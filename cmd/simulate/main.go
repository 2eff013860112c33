package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/okian/futsalrank/internal/simulate"
	"github.com/okian/futsalrank/pkg/logger"
)

// Default configuration constants.
const (
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	defaultTimeout = 10 * time.Minute
)

func main() {
	def := simulate.DefaultConfig()
	var (
		teams       = flag.Int("teams", def.Teams, "Number of teams to register")
		venues      = flag.Int("venues", def.Venues, "Number of venues")
		rounds      = flag.Int("rounds", def.Rounds, "Number of simulated days")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent requesters")
		topN        = flag.Int("top", def.TopN, "Recommendations requested per fixture")
		accept      = flag.Float64("accept", def.AcceptRate, "Probability an invitation is accepted")
		competitive = flag.Float64("competitive", def.CompetitiveRate, "Probability a request is competitive")
		seed        = flag.Uint64("seed", def.Seed, "Random seed")
		start       = flag.String("start", def.Start.Format(time.DateOnly), "First simulated day (YYYY-MM-DD)")
		cooldown    = flag.Duration("cooldown", def.Cooldown, "Rejection cooldown period")
		outputFile  = flag.String("output", "", "Write the JSON report to this file")
		logFormat   = flag.String("log-format", logger.FormatText, "Log format: text or json")
		timeout     = flag.Duration("timeout", defaultTimeout, "Upper bound for the whole season")
		verbose     = flag.Bool("verbose", false, "Log every fixture")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	if err := logger.SetFormat(*logFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Named("simulate")

	first, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid -start:", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runner, err := simulate.New(simulate.Config{
		Teams:           *teams,
		Venues:          *venues,
		Rounds:          *rounds,
		Workers:         *workers,
		TopN:            *topN,
		AcceptRate:      *accept,
		CompetitiveRate: *competitive,
		Seed:            *seed,
		Start:           first.Add(9 * time.Hour),
		Cooldown:        *cooldown,
		OutputFile:      *outputFile,
		Verbose:         *verbose,
	}, simulate.WithLogger(log))
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}
	if _, err := runner.Run(ctx); err != nil {
		log.Error(ctx, "season failed", logger.Error(err))
		os.Exit(1)
	}
}

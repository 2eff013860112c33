package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/futsalrank/internal/adapters/http/api"
	"github.com/okian/futsalrank/internal/adapters/notify"
	"github.com/okian/futsalrank/internal/adapters/repository"
	service "github.com/okian/futsalrank/internal/app"
	"github.com/okian/futsalrank/internal/config"
	"github.com/okian/futsalrank/pkg/logger"
	"github.com/okian/futsalrank/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// engine bundles the wired components so main and tests build them the same way.
type engine struct {
	store      *repository.MemoryStore
	dispatcher *notify.Dispatcher
	service    *service.Service
}

func newEngine(cfg *config.Config, log logger.Logger) *engine {
	store := repository.NewMemoryStore()
	dispatcher := notify.NewDispatcher(notify.Config{
		QueueSize:       cfg.NotifyQueueSize,
		Workers:         cfg.NotifyWorkerCount,
		DedupeSize:      cfg.NotifyDedupeSize,
		BreakerFailures: cfg.NotifyBreakerFailures,
		BreakerTimeout:  cfg.NotifyBreakerTimeout,
	}, notify.NewLogNotifier(log), notify.WithLogger(log))

	svc := service.New(store,
		service.WithLogger(log),
		service.WithAlpha(cfg.HybridAlpha),
		service.WithCandidatePool(cfg.CandidatePool),
		service.WithRecommendLimit(cfg.RecommendLimit),
		service.WithCooldownPeriod(cfg.CooldownPeriod),
		service.WithPublisher(dispatcher),
	)
	return &engine{store: store, dispatcher: dispatcher, service: svc}
}

func newHTTPServer(ctx context.Context, cfg *config.Config, svc *service.Service) *http.Server {
	mux := http.NewServeMux()
	api.NewServer(svc).Register(ctx, mux)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to set log format: " + err.Error() + "\n")
	}
	log := logger.Get()
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	eng := newEngine(cfg, log)
	eng.dispatcher.Start(ctx)
	if err := eng.service.RebuildLeaderboard(ctx); err != nil {
		log.Error(ctx, "leaderboard rebuild failed", logger.Error(err))
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, eng.service)

	srv := newHTTPServer(ctx, cfg, eng.service)
	go func() {
		log.Info(ctx, "starting ops HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := eng.dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "notification drain failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "stopped")
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that refreshes
// gauges derived from service stats.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics. Stats refreshes the
// queue gauge itself.
func updateServiceMetrics(ctx context.Context, svc *service.Service) {
	stats := svc.Stats(ctx)
	if teams, ok := stats["teams"].(int); ok {
		metrics.UpdateTotalTeams(teams)
	}
}

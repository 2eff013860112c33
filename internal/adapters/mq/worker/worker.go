// Package worker delivers queued notifications through a Notifier guarded by
// a circuit breaker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/futsalrank/internal/domain/dedupe"
	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/pkg/logger"
	"github.com/okian/futsalrank/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount     = 2
	defaultSendTimeout     = 5 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
	poolShutdownTimeout    = 10 * time.Second
)

// Notification is what workers read off the queue.
type Notification = model.Notification

// Notifier sends one notification to its recipients.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Queue defines how workers receive notifications.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Notification
}

// Breaker is the circuit breaker type shared by a pool's workers.
type Breaker = gobreaker.CircuitBreaker[struct{}]

// NewBreaker trips after failures consecutive delivery errors and probes again
// after timeout. State changes are logged and exported as a gauge.
func NewBreaker(name string, failures uint32, timeout time.Duration, log logger.Logger) *Breaker {
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	if timeout <= 0 {
		timeout = defaultBreakerTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	metrics.UpdateBreakerState(metrics.BreakerClosed)
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(breakerGauge(to))
			log.Warn(context.Background(), "notification breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
}

func breakerGauge(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}

// InMemoryWorker delivers notifications from a queue.
type InMemoryWorker struct {
	queue    Queue
	notifier Notifier
	breaker  *Breaker
	deduper  dedupe.Deduper
	name     string
	timeout  time.Duration

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, n Notifier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		notifier: n,
		name:     "worker",
		timeout:  defaultSendTimeout,
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.breaker == nil {
		w.breaker = NewBreaker(w.name, defaultBreakerFailures, defaultBreakerTimeout, w.logger)
	}
	if w.deduper == nil {
		w.deduper = dedupe.NewInMemoryDeduper()
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run delivers until the queue closes or ctx is cancelled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)
	ch := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.deliver(ctx, n); err != nil {
				w.logger.Warn(ctx, "notification not delivered",
					logger.String("notificationID", n.ID),
					logger.String("kind", string(n.Kind)),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// deliver sends one notification. Duplicates are skipped silently.
func (w *InMemoryWorker) deliver(ctx context.Context, n Notification) error { //nolint:gocritic // passed by value for channel semantics
	if w.deduper.SeenAndRecord(ctx, n.ID) {
		metrics.RecordNotification("duplicate")
		return nil
	}

	start := time.Now()
	sendCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	_, err := w.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, w.notifier.Notify(sendCtx, n)
	})
	metrics.RecordDeliveryLatency(float64(time.Since(start).Milliseconds()))

	switch {
	case err == nil:
		metrics.RecordNotification("delivered")
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordNotification("rejected")
	default:
		metrics.RecordNotification("failed")
	}
	// Forget the id so a republish of the same notification is not dropped.
	w.deduper.Unrecord(ctx, n.ID)
	return fmt.Errorf("deliver %s: %w", n.ID, err)
}

// Pool runs several workers over one queue with a shared breaker and deduper.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates workerCount workers. Options apply to every worker; the
// breaker and deduper are created once and shared unless supplied.
func NewPool(workerCount int, q Queue, n Notifier, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	probe := &InMemoryWorker{logger: logger.Nop()}
	for _, opt := range opts {
		opt(probe)
	}
	if probe.breaker == nil {
		probe.breaker = NewBreaker("notify", defaultBreakerFailures, defaultBreakerTimeout, probe.logger)
	}
	if probe.deduper == nil {
		probe.deduper = dedupe.NewInMemoryDeduper()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  probe.logger.Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts,
			WithName("worker-"+strconv.Itoa(i)),
			WithBreaker(probe.breaker),
			WithDeduper(probe.deduper),
		)
		p.workers[i] = NewInMemoryWorker(q, n, wopts...)
	}
	metrics.UpdateWorkerCount(0)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	metrics.UpdateWorkerCount(len(p.workers))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Shutdown closes the queue when it supports Close and waits for workers to
// drain it, bounded by ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	select {
	case <-done:
		metrics.UpdateWorkerCount(0)
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out", logger.Int("workers", len(p.workers)))
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
}

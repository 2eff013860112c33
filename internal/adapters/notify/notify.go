// Package notify publishes engine notifications asynchronously. Publishing
// never blocks the caller; a full or closed queue drops the notification.
package notify

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/okian/futsalrank/internal/adapters/mq/queue"
	"github.com/okian/futsalrank/internal/adapters/mq/worker"
	"github.com/okian/futsalrank/internal/domain/dedupe"
	"github.com/okian/futsalrank/internal/domain/model"
	"github.com/okian/futsalrank/pkg/logger"
	"github.com/okian/futsalrank/pkg/metrics"
)

// Config sizes the dispatcher.
type Config struct {
	QueueSize       int
	Workers         int
	DedupeSize      int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	SendTimeout     time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock sets the clock used to stamp notifications.
func WithClock(c clockwork.Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// Dispatcher queues notifications and delivers them with a worker pool.
type Dispatcher struct {
	queue  *queue.InMemoryQueue
	pool   *worker.Pool
	clock  clockwork.Clock
	logger logger.Logger
	stop   context.CancelFunc
}

// NewDispatcher wires a queue, a deduper, a breaker and a worker pool around n.
func NewDispatcher(cfg Config, n worker.Notifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		clock:  clockwork.NewRealClock(),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("notify")

	d.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueSize))
	var dedupeOpts []dedupe.Option
	if cfg.DedupeSize > 0 {
		dedupeOpts = append(dedupeOpts, dedupe.WithMaxSize(cfg.DedupeSize))
	}
	breaker := worker.NewBreaker("notify", cfg.BreakerFailures, cfg.BreakerTimeout, d.logger)
	d.pool = worker.NewPool(cfg.Workers, d.queue, n,
		worker.WithLogger(d.logger),
		worker.WithBreaker(breaker),
		worker.WithDeduper(dedupe.NewInMemoryDeduper(dedupeOpts...)),
		worker.WithSendTimeout(cfg.SendTimeout),
	)
	return d
}

// Start launches the workers. They outlive ctx and stop only through Shutdown,
// so notifications queued when ctx is cancelled are still delivered.
func (d *Dispatcher) Start(ctx context.Context) {
	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	d.stop = stop
	d.pool.Start(runCtx)
}

// Publish assigns an id and timestamp when missing and enqueues n. It returns
// false when the notification was dropped.
func (d *Dispatcher) Publish(ctx context.Context, n model.Notification) bool {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.clock.Now()
	}
	if !d.queue.Enqueue(ctx, n) {
		metrics.RecordNotification("dropped")
		d.logger.Warn(ctx, "notification dropped",
			logger.String("kind", string(n.Kind)),
			logger.String("matchID", n.MatchID),
		)
		return false
	}
	metrics.RecordNotification("published")
	return true
}

// Pending returns the number of queued notifications.
func (d *Dispatcher) Pending(ctx context.Context) int { return d.queue.Len(ctx) }

// Shutdown stops accepting notifications and waits, bounded by ctx, for the
// workers to drain the queue. Workers still running afterwards are stopped.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	err := d.pool.Shutdown(ctx)
	if d.stop != nil {
		d.stop()
	}
	return err
}

// LogNotifier writes notifications to the log. It stands in for email or push
// delivery, which live outside this service.
type LogNotifier struct {
	logger logger.Logger
}

// NewLogNotifier returns a notifier logging at info level.
func NewLogNotifier(l logger.Logger) *LogNotifier {
	if l == nil {
		l = logger.Nop()
	}
	return &LogNotifier{logger: l.Named("notifier")}
}

// Notify logs n with its payload keys in a stable order.
func (l *LogNotifier) Notify(ctx context.Context, n model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	keys := make([]string, 0, len(n.Payload))
	for k := range n.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := []logger.Field{
		logger.String("id", n.ID),
		logger.String("kind", string(n.Kind)),
		logger.String("matchID", n.MatchID),
		logger.String("recipients", strings.Join(n.Recipients, ",")),
	}
	for _, k := range keys {
		fields = append(fields, logger.Any(k, n.Payload[k]))
	}
	l.logger.Info(ctx, "notification", fields...)
	return nil
}

// Discard is a Publisher that drops everything. Useful when notifications are
// disabled.
type Discard struct{}

// Publish drops n and reports success.
func (Discard) Publish(context.Context, model.Notification) bool { return true }

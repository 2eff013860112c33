package worker

import (
	"time"

	"github.com/okian/futsalrank/internal/domain/dedupe"
	"github.com/okian/futsalrank/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithBreaker sets the circuit breaker guarding the notifier.
func WithBreaker(b *Breaker) Option {
	return func(w *InMemoryWorker) {
		if b != nil {
			w.breaker = b
		}
	}
}

// WithDeduper sets the duplicate filter.
func WithDeduper(d dedupe.Deduper) Option {
	return func(w *InMemoryWorker) {
		if d != nil {
			w.deduper = d
		}
	}
}

// WithSendTimeout bounds a single Notify call.
func WithSendTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

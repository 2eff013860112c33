// Package cooldown tracks rejections between ordered team pairs and decides
// whether a team may send another request.
package cooldown

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/futsalrank/internal/domain/model"
)

// DefaultPeriod is how long a rejection blocks new requests.
const DefaultPeriod = 24 * time.Hour

// Store persists rejection records. At most one uncleared record exists per
// ordered pair; SaveRejection overwrites the record for its pair.
type Store interface {
	FindUncleared(ctx context.Context, rejecting, rejected model.TeamID) (model.RejectionRecord, bool, error)
	SaveRejection(ctx context.Context, rec model.RejectionRecord) error
	ListUnclearedBetween(ctx context.Context, a, b model.TeamID) ([]model.RejectionRecord, error)
}

// Locker serializes access to named keys. The returned unlock func must be
// called exactly once.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPeriod sets the cooldown period. Non-positive values are ignored.
func WithPeriod(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.period = d
		}
	}
}

// WithClock sets the time source.
func WithClock(c clockwork.Clock) Option {
	return func(l *Ledger) {
		if c != nil {
			l.clock = c
		}
	}
}

// Ledger implements the clear -> rejected -> clear state machine per ordered pair.
// Expired records are cleared lazily, pair by pair, when that pair is read.
type Ledger struct {
	store  Store
	locker Locker
	clock  clockwork.Clock
	period time.Duration
}

// NewLedger creates a ledger over store, serialized by locker.
func NewLedger(store Store, locker Locker, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		locker: locker,
		clock:  clockwork.NewRealClock(),
		period: DefaultPeriod,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Period returns the configured cooldown period.
func (l *Ledger) Period() time.Duration { return l.period }

// PairKey is the lock key of the ordered pair.
func PairKey(rejecting, rejected model.TeamID) string {
	return "pair:" + rejecting + ":" + rejected
}

// RecordRejection upserts the record for (rejecting, rejected) with a fresh
// timestamp.
func (l *Ledger) RecordRejection(ctx context.Context, rejecting, rejected model.TeamID) (model.RejectionRecord, error) {
	const op = "cooldown.RecordRejection"
	if rejecting == "" || rejected == "" || rejecting == rejected {
		return model.RejectionRecord{}, model.Invalidf(op, "invalid pair %q/%q", rejecting, rejected)
	}
	unlock, err := l.locker.Lock(ctx, PairKey(rejecting, rejected))
	if err != nil {
		return model.RejectionRecord{}, model.Wrap(op, err)
	}
	defer unlock()

	rec, found, err := l.store.FindUncleared(ctx, rejecting, rejected)
	if err != nil {
		return model.RejectionRecord{}, model.Wrap(op, err)
	}
	if !found {
		rec = model.RejectionRecord{Rejecting: rejecting, Rejected: rejected}
	}
	rec.Timestamp = l.clock.Now()
	rec.Cleared = false
	if err := l.store.SaveRejection(ctx, rec); err != nil {
		return model.RejectionRecord{}, model.Wrap(op, err)
	}
	return rec, nil
}

// IsBlocked reports whether rejecting turned down rejected less than one period ago.
func (l *Ledger) IsBlocked(ctx context.Context, rejecting, rejected model.TeamID) (bool, error) {
	left, err := l.Remaining(ctx, rejecting, rejected)
	return left > 0, err
}

// Remaining returns how long the pair stays blocked, 0 when clear. A record
// whose age reached the period is cleared first. The sweep covers only the
// ordered pair being read; other expired records wait for their own read.
func (l *Ledger) Remaining(ctx context.Context, rejecting, rejected model.TeamID) (time.Duration, error) {
	const op = "cooldown.Remaining"
	unlock, err := l.locker.Lock(ctx, PairKey(rejecting, rejected))
	if err != nil {
		return 0, model.Wrap(op, err)
	}
	defer unlock()

	rec, found, err := l.store.FindUncleared(ctx, rejecting, rejected)
	if err != nil {
		return 0, model.Wrap(op, err)
	}
	if !found {
		return 0, nil
	}
	age := l.clock.Since(rec.Timestamp)
	if age >= l.period {
		rec.Cleared = true
		if err := l.store.SaveRejection(ctx, rec); err != nil {
			return 0, model.Wrap(op, err)
		}
		return 0, nil
	}
	return l.period - age, nil
}

// ClearPair clears every uncleared record between a and b in both directions.
// It returns the number of records cleared.
func (l *Ledger) ClearPair(ctx context.Context, a, b model.TeamID) (int, error) {
	const op = "cooldown.ClearPair"
	unlock, err := l.locker.Lock(ctx, PairKey(a, b), PairKey(b, a))
	if err != nil {
		return 0, model.Wrap(op, err)
	}
	defer unlock()

	recs, err := l.store.ListUnclearedBetween(ctx, a, b)
	if err != nil {
		return 0, model.Wrap(op, err)
	}
	for _, rec := range recs {
		rec.Cleared = true
		if err := l.store.SaveRejection(ctx, rec); err != nil {
			return 0, model.Wrap(op, err)
		}
	}
	return len(recs), nil
}

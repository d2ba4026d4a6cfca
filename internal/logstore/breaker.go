package logstore

import (
	"context"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
)

// Breaker wraps a Store in a circuit breaker. While open, appends fail fast
// with gobreaker.ErrOpenState instead of waiting on a dead backend.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next. Zero fields in cfg fall back to gobreaker defaults,
// except Failures which defaults to 3.
func NewBreaker(next Store, name string, cfg config.BreakerConfig) *Breaker {
	failures := cfg.Failures
	if failures == 0 {
		failures = 3
	}
	settings := gobreaker.Settings{
		Name:        "logstore-" + name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("logstore: breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *Breaker) AppendRow(ctx context.Context, row Row) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.AppendRow(ctx, row)
	})
	return err
}

// Rows delegates to the wrapped store when it can list rows.
func (b *Breaker) Rows(ctx context.Context, limit int) ([]Row, error) {
	r, ok := b.next.(Reader)
	if !ok {
		return nil, ErrNotListable
	}
	return r.Rows(ctx, limit)
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func (b *Breaker) Close() error { return b.next.Close() }

// Check reports an error while s is a breaker that is open. Other stores are
// always considered healthy.
func Check(s Store) error {
	b, ok := s.(*Breaker)
	if !ok {
		return nil
	}
	if b.State() == gobreaker.StateOpen {
		return gobreaker.ErrOpenState
	}
	return nil
}

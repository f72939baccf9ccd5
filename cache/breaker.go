package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerConfig configures the circuit breaker put in front of a Store.
type BreakerConfig struct {
	Name string
	// Requests let through while half-open.
	MaxRequests uint32
	// Cyclic period in which closed-state counts are cleared.
	Interval time.Duration
	// How long the breaker stays open before probing again.
	Timeout time.Duration
	// Consecutive failures that trip the breaker.
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig returns the settings used when none are configured.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         1,
		Interval:            30 * time.Second,
		Timeout:             5 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerStore wraps a Store with a circuit breaker.
// While the breaker is open Get and Set fail immediately with
// gobreaker.ErrOpenState instead of waiting on an unreachable store.
// Deletes and Ping always reach the store.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerStore(next Store, cfg BreakerConfig, log zerolog.Logger) *BreakerStore {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig(cfg.Name).ConsecutiveFailures
	}
	threshold := cfg.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Cache store circuit breaker changed state")
		},
	})
	return &BreakerStore{next: next, cb: cb}
}

// State reports the current breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		val   []byte
		found bool
	)
	err := b.run(ctx, func() error {
		var err error
		val, found, err = b.next.Get(ctx, key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return val, found, nil
}

func (b *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.run(ctx, func() error { return b.next.Set(ctx, key, value, ttl) })
}

// Delete bypasses the breaker: a breaker opened by failing reads must not
// swallow invalidations the store could still serve.
func (b *BreakerStore) Delete(ctx context.Context, key string) error {
	return b.next.Delete(ctx, key)
}

// DeletePrefix bypasses the breaker, as Delete does.
func (b *BreakerStore) DeletePrefix(ctx context.Context, prefix string) error {
	return b.next.DeletePrefix(ctx, prefix)
}

// Ping bypasses the breaker so health checks see the real store state.
func (b *BreakerStore) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}

func (b *BreakerStore) Close() error {
	return b.next.Close()
}

// run executes fn through the breaker. Errors caused by the caller giving up
// (ctx cancelled or past its deadline) are returned but not counted as store
// failures.
func (b *BreakerStore) run(ctx context.Context, fn func() error) error {
	var callerErr error
	_, err := b.cb.Execute(func() (interface{}, error) {
		err := fn()
		if err != nil && ctx.Err() != nil {
			callerErr = err
			return nil, nil
		}
		return nil, err
	})
	if callerErr != nil {
		return callerErr
	}
	return err
}

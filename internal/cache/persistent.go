package cache

import (
	"context"
	"errors"
	"time"

	"github.com/oriys/contentcache/internal/logging"
	"github.com/oriys/contentcache/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// Persistent is the primary/replica Redis pair holding data that is not a
// cache: counters, channel tops, and user histories. Writes go to the
// primary. Reads try the primary and fall back to the replica on a backend
// error, or go straight to the replica while the primary breaker is open.
type Persistent struct {
	primary redis.UniversalClient
	replica redis.UniversalClient
	breaker *gobreaker.CircuitBreaker
	opts    options
}

// BreakerSettings tunes the primary breaker.
type BreakerSettings struct {
	Failures uint32        // consecutive failures that open the breaker
	Cooldown time.Duration // time spent open before probing again
}

var defaultBreaker = BreakerSettings{Failures: 5, Cooldown: 10 * time.Second}

// NewPersistent wraps primary and an optional replica.
func NewPersistent(primary, replica redis.UniversalClient, bs *BreakerSettings, opts ...Option) *Persistent {
	settings := defaultBreaker
	if bs != nil {
		if bs.Failures > 0 {
			settings.Failures = bs.Failures
		}
		if bs.Cooldown > 0 {
			settings.Cooldown = bs.Cooldown
		}
	}
	p := &Persistent{primary: primary, replica: replica, opts: buildOptions(opts)}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-primary",
		MaxRequests: 1,
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.Failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, int(to))
			logging.Op().Warn("redis breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return p
}

func (p *Persistent) Primary() redis.UniversalClient { return p.primary }

// write runs fn on the primary through the breaker.
func (p *Persistent) write(fn func(c redis.UniversalClient) error) error {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, fn(p.primary)
	})
	return err
}

// read runs fn on the primary and retries it on the replica when the primary
// fails or is tripped. redis.Nil is a result, not a failure.
func (p *Persistent) read(ctx context.Context, op string, fn func(c redis.UniversalClient) error) error {
	err := p.write(fn)
	if err == nil || errors.Is(err, redis.Nil) || p.replica == nil || ctx.Err() != nil {
		return err
	}
	if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
		p.opts.log(ctx).Warn("redis primary read failed, using replica", "op", op, "error", err)
	}
	metrics.RecordCounterFallback(op, "replica")
	return fn(p.replica)
}

// Ping checks the primary directly, bypassing the breaker.
func (p *Persistent) Ping(ctx context.Context) error {
	return p.primary.Ping(ctx).Err()
}

// Package cache implements the Redis-backed read-through caches used in front
// of the content store: jittered object caches with negative markers,
// sorted-set pagination indexes, relationship sets, and approximate counters.
//
// Cache backend failures never reach callers. They are logged, counted, and
// degrade to a store read or a zero value. Store errors are returned as-is.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oriys/contentcache/internal/logging"
	"github.com/oriys/contentcache/internal/metrics"
	"github.com/oriys/contentcache/internal/store"
)

// ErrNotFound is returned when the entity is confirmed absent, either by a
// negative marker or by the store. It matches store.ErrNotFound as well.
var ErrNotFound = fmt.Errorf("cache: %w", store.ErrNotFound)

// NegativeMarker is stored in an object key to record that the entity does
// not exist. No JSON object encodes to it.
const NegativeMarker = "-1"

// DefaultUpdateGuard is the minimum remaining TTL an index must have for
// in-place updates. Below it the update is dropped and the next read rebuilds.
const DefaultUpdateGuard = 5 * time.Second

type options struct {
	logger       *slog.Logger
	singleFlight bool
	guard        time.Duration
}

// Option configures a cache component.
type Option func(*options)

// WithLogger overrides the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSingleFlight collapses concurrent populations of the same key within
// this process. Off by default; duplicate population is harmless.
func WithSingleFlight(enabled bool) Option {
	return func(o *options) { o.singleFlight = enabled }
}

// WithUpdateGuard overrides DefaultUpdateGuard.
func WithUpdateGuard(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.guard = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{guard: DefaultUpdateGuard}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) log(ctx context.Context) *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return logging.Ctx(ctx)
}

// degrade records a swallowed backend error.
func (o options) degrade(ctx context.Context, cache, op, key string, err error) {
	metrics.RecordCacheError(cache, op)
	o.log(ctx).Warn("cache backend error", "cache", cache, "op", op, "key", key, "error", err)
}

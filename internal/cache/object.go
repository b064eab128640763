package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oriys/contentcache/internal/metrics"
	"github.com/oriys/contentcache/internal/observability"
	"github.com/oriys/contentcache/internal/store"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ObjectConfig describes one entity class held in an Object cache.
type ObjectConfig[T any] struct {
	Name        string
	Key         func(id int64) string
	TTL         TTL
	NegativeTTL TTL

	// Load fetches the canonical value and returns store.ErrNotFound when
	// the entity does not exist.
	Load func(ctx context.Context, id int64) (*T, error)

	// LoadMany is optional; without it GetMany falls back to Load per id.
	// Absent ids are omitted from the result.
	LoadMany func(ctx context.Context, ids []int64) (map[int64]*T, error)
}

// Object is a read-through JSON cache for single entities keyed by id.
type Object[T any] struct {
	client redis.UniversalClient
	cfg    ObjectConfig[T]
	opts   options
	group  singleflight.Group
}

func NewObject[T any](client redis.UniversalClient, cfg ObjectConfig[T], opts ...Option) *Object[T] {
	return &Object[T]{client: client, cfg: cfg, opts: buildOptions(opts)}
}

func (o *Object[T]) Name() string { return o.cfg.Name }

type lookupResult int

const (
	lookupMiss lookupResult = iota
	lookupHit
	lookupNegative
)

// decode classifies a cached payload. Corrupt payloads count as a miss so the
// next Save overwrites them.
func (o *Object[T]) decode(ctx context.Context, key string, raw []byte) (*T, lookupResult) {
	if string(raw) == NegativeMarker {
		return nil, lookupNegative
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		o.opts.log(ctx).Warn("discarding undecodable cache entry", "cache", o.cfg.Name, "key", key, "error", err)
		return nil, lookupMiss
	}
	return v, lookupHit
}

func (o *Object[T]) lookup(ctx context.Context, key string) (*T, lookupResult) {
	raw, err := o.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, lookupMiss
	}
	if err != nil {
		o.opts.degrade(ctx, o.cfg.Name, "get", key, err)
		return nil, lookupMiss
	}
	return o.decode(ctx, key, raw)
}

// Get returns the cached value, populating it from the store on a miss. A
// negative marker yields ErrNotFound without a store read. A store miss is
// returned as ErrNotFound but not marked; Exists does that.
func (o *Object[T]) Get(ctx context.Context, id int64) (*T, error) {
	v, res := o.lookup(ctx, o.cfg.Key(id))
	switch res {
	case lookupHit:
		metrics.RecordCacheRequest(o.cfg.Name, metrics.ResultHit)
		return v, nil
	case lookupNegative:
		metrics.RecordCacheRequest(o.cfg.Name, metrics.ResultNegative)
		return nil, ErrNotFound
	}
	metrics.RecordCacheRequest(o.cfg.Name, metrics.ResultMiss)
	return o.Save(ctx, id)
}

// Save loads the canonical value and writes it with a fresh TTL regardless
// of what is cached.
func (o *Object[T]) Save(ctx context.Context, id int64) (*T, error) {
	if !o.opts.singleFlight {
		return o.populate(ctx, id)
	}
	v, err, _ := o.group.Do(o.cfg.Key(id), func() (any, error) {
		return o.populate(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

func (o *Object[T]) populate(ctx context.Context, id int64) (*T, error) {
	ctx, span := observability.StartSpan(ctx, "cache.populate",
		observability.AttrCache.String(o.cfg.Name),
		observability.AttrID.Int64(id),
	)
	defer span.End()

	start := time.Now()
	v, err := o.cfg.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		span.SetAttributes(observability.AttrNotFound.Bool(true))
		return nil, ErrNotFound
	}
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, err
	}
	o.Put(ctx, id, v)
	metrics.RecordPopulate(o.cfg.Name, time.Since(start))
	return v, nil
}

// Put caches a value the caller already holds.
func (o *Object[T]) Put(ctx context.Context, id int64, v *T) {
	key := o.cfg.Key(id)
	data, err := json.Marshal(v)
	if err != nil {
		o.opts.log(ctx).Error("encode cache entry", "cache", o.cfg.Name, "key", key, "error", err)
		return
	}
	if err := o.client.Set(ctx, key, data, o.cfg.TTL.Next()).Err(); err != nil {
		o.opts.degrade(ctx, o.cfg.Name, "set", key, err)
	}
}

// MarkAbsent writes the negative marker with the short TTL class.
func (o *Object[T]) MarkAbsent(ctx context.Context, id int64) {
	key := o.cfg.Key(id)
	if err := o.client.Set(ctx, key, NegativeMarker, o.cfg.NegativeTTL.Next()).Err(); err != nil {
		o.opts.degrade(ctx, o.cfg.Name, "set_negative", key, err)
	}
}

// Exists reports whether the entity exists. A miss populates the slot with
// either the value or a negative marker.
func (o *Object[T]) Exists(ctx context.Context, id int64) (bool, error) {
	_, res := o.lookup(ctx, o.cfg.Key(id))
	switch res {
	case lookupHit:
		metrics.RecordCacheRequest(o.cfg.Name, metrics.ResultHit)
		return true, nil
	case lookupNegative:
		metrics.RecordCacheRequest(o.cfg.Name, metrics.ResultNegative)
		return false, nil
	}
	metrics.RecordCacheRequest(o.cfg.Name, metrics.ResultMiss)

	_, err := o.Save(ctx, id)
	if errors.Is(err, ErrNotFound) {
		o.MarkAbsent(ctx, id)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Clear deletes the cached value or marker.
func (o *Object[T]) Clear(ctx context.Context, id int64) error {
	key := o.cfg.Key(id)
	if err := o.client.Del(ctx, key).Err(); err != nil {
		o.opts.degrade(ctx, o.cfg.Name, "del", key, err)
		return err
	}
	return nil
}

// GetMany returns the values for ids in input order, skipping ids that are
// absent. Hits come from one pipelined read; misses are loaded in one store
// batch and written back in one pipeline.
func (o *Object[T]) GetMany(ctx context.Context, ids []int64) ([]*T, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	found := make(map[int64]*T, len(ids))
	negative := make(map[int64]bool)

	pipe := o.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, o.cfg.Key(id))
	}
	_, err := pipe.Exec(ctx)
	pipeFailed := err != nil && !errors.Is(err, redis.Nil)
	if pipeFailed {
		o.opts.degrade(ctx, o.cfg.Name, "mget", o.cfg.Key(ids[0]), err)
	}

	var missing []int64
	for i, id := range ids {
		if _, seen := found[id]; seen || negative[id] {
			continue
		}
		if !pipeFailed {
			if raw, err := cmds[i].Bytes(); err == nil {
				v, res := o.decode(ctx, o.cfg.Key(id), raw)
				switch res {
				case lookupHit:
					metrics.RecordCacheRequest(o.cfg.Name, metrics.ResultHit)
					found[id] = v
					continue
				case lookupNegative:
					metrics.RecordCacheRequest(o.cfg.Name, metrics.ResultNegative)
					negative[id] = true
					continue
				}
			}
		}
		metrics.RecordCacheRequest(o.cfg.Name, metrics.ResultMiss)
		found[id] = nil
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		loaded, err := o.loadMany(ctx, missing)
		if err != nil {
			return nil, err
		}
		o.putMany(ctx, loaded)
		for _, id := range missing {
			found[id] = loaded[id]
		}
	}

	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		if v := found[id]; v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

func (o *Object[T]) loadMany(ctx context.Context, ids []int64) (map[int64]*T, error) {
	ctx, span := observability.StartSpan(ctx, "cache.populate_many",
		observability.AttrCache.String(o.cfg.Name),
		observability.AttrCount.Int(len(ids)),
	)
	defer span.End()

	if o.cfg.LoadMany != nil {
		loaded, err := o.cfg.LoadMany(ctx, ids)
		if err != nil {
			observability.SetSpanError(span, err)
		}
		return loaded, err
	}

	loaded := make(map[int64]*T, len(ids))
	for _, id := range ids {
		v, err := o.cfg.Load(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			observability.SetSpanError(span, err)
			return nil, err
		}
		loaded[id] = v
	}
	return loaded, nil
}

func (o *Object[T]) putMany(ctx context.Context, values map[int64]*T) {
	if len(values) == 0 {
		return
	}
	pipe := o.client.Pipeline()
	for id, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			o.opts.log(ctx).Error("encode cache entry", "cache", o.cfg.Name, "id", id, "error", err)
			continue
		}
		pipe.Set(ctx, o.cfg.Key(id), data, o.cfg.TTL.Next())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		o.opts.degrade(ctx, o.cfg.Name, "mset", "", err)
	}
}

package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/oriys/contentcache/internal/domain"
	"github.com/oriys/contentcache/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// resetChunk bounds the members sent in one ZADD during Reset.
const resetChunk = 1000

// Counter is an approximate per-id count kept in one sorted set. It has no
// TTL; drift is corrected by Reset from a store aggregate.
type Counter struct {
	key string
	p   *Persistent
}

func NewCounter(key string, p *Persistent) *Counter {
	return &Counter{key: key, p: p}
}

func (c *Counter) Key() string { return c.key }

// Get returns the count for id. Backend failures yield 0.
func (c *Counter) Get(ctx context.Context, id int64) int64 {
	var score float64
	err := c.p.read(ctx, c.key, func(cl redis.UniversalClient) error {
		var err error
		score, err = cl.ZScore(ctx, c.key, itoa(id)).Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		c.p.opts.degrade(ctx, c.key, "zscore", c.key, err)
		metrics.RecordCounterFallback(c.key, "default")
		return 0
	}
	return int64(score)
}

// GetMany returns counts for ids in one pipeline. Missing ids map to 0.
func (c *Counter) GetMany(ctx context.Context, ids []int64) map[int64]int64 {
	out := make(map[int64]int64, len(ids))
	if len(ids) == 0 {
		return out
	}
	for _, id := range ids {
		out[id] = 0
	}

	var cmds []*redis.FloatCmd
	err := c.p.read(ctx, c.key, func(cl redis.UniversalClient) error {
		pipe := cl.Pipeline()
		cmds = make([]*redis.FloatCmd, len(ids))
		for i, id := range ids {
			cmds[i] = pipe.ZScore(ctx, c.key, itoa(id))
		}
		_, err := pipe.Exec(ctx)
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	})
	if err != nil {
		c.p.opts.degrade(ctx, c.key, "zscore_many", c.key, err)
		metrics.RecordCounterFallback(c.key, "default")
		return out
	}
	for i, id := range ids {
		if v, err := cmds[i].Result(); err == nil {
			out[id] = int64(v)
		}
	}
	return out
}

// Incr adds delta to id's count on the primary.
func (c *Counter) Incr(ctx context.Context, id, delta int64) error {
	err := c.p.write(func(cl redis.UniversalClient) error {
		return cl.ZIncrBy(ctx, c.key, float64(delta), itoa(id)).Err()
	})
	if err != nil {
		c.p.opts.degrade(ctx, c.key, "zincrby", c.key, err)
	}
	return err
}

// Reset replaces the whole set with pairs inside MULTI/EXEC, so readers see
// either the old set or the new one. Increments that land between the
// caller's aggregate query and this call are lost.
func (c *Counter) Reset(ctx context.Context, pairs []domain.CountPair) error {
	return c.p.write(func(cl redis.UniversalClient) error {
		_, err := cl.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, c.key)
			for start := 0; start < len(pairs); start += resetChunk {
				end := min(start+resetChunk, len(pairs))
				members := make([]redis.Z, 0, end-start)
				for _, pair := range pairs[start:end] {
					members = append(members, redis.Z{
						Score:  float64(pair.Count),
						Member: strconv.FormatInt(pair.ID, 10),
					})
				}
				pipe.ZAdd(ctx, c.key, members...)
			}
			return nil
		})
		return err
	})
}

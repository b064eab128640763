package cache

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/oriys/contentcache/internal/domain"
	"github.com/oriys/contentcache/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// Relation caches a subject's full related-user list (followings or
// followers) as one sorted set scored by relation time. Listing and
// membership tests both read the whole set.
type Relation struct {
	c *Collection
}

func NewRelation(client redis.UniversalClient, s Strategy, opts ...Option) *Relation {
	return &Relation{c: NewCollection(client, s, opts...)}
}

func (r *Relation) Name() string { return r.c.s.Name }

// Get returns related ids, most recent first.
func (r *Relation) Get(ctx context.Context, subjectID int64) ([]int64, error) {
	key := r.c.s.Key(subjectID)
	members, err := r.c.client.ZRevRange(ctx, key, 0, -1).Result()
	if err != nil {
		r.c.opts.degrade(ctx, r.c.s.Name, "zrevrange", key, err)
	}
	if len(members) > 0 {
		metrics.RecordCacheRequest(r.c.s.Name, metrics.ResultHit)
		ids := make([]int64, 0, len(members))
		for _, m := range members {
			if id, err := strconv.ParseInt(m, 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
		return ids, nil
	}
	metrics.RecordCacheRequest(r.c.s.Name, metrics.ResultMiss)

	refs, err := r.c.load(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return ids, nil
}

// Contains reports whether target is in subject's list.
func (r *Relation) Contains(ctx context.Context, subjectID, targetID int64) (bool, error) {
	ids, err := r.Get(ctx, subjectID)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, targetID), nil
}

// Update adds (delta > 0) or removes target in place when the cached set has
// more than the update guard of TTL left. Otherwise the set is rebuilt on the
// next read.
func (r *Relation) Update(ctx context.Context, subjectID, targetID int64, at time.Time, delta int) bool {
	if delta > 0 {
		return r.c.Add(ctx, subjectID, domain.Ref{ID: targetID, At: at})
	}
	return r.c.Remove(ctx, subjectID, targetID)
}

func (r *Relation) Clear(ctx context.Context, subjectID int64) error {
	return r.c.Clear(ctx, subjectID)
}

package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/oriys/contentcache/internal/domain"
	"github.com/oriys/contentcache/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// Attitude caches a user's attitude toward an article as a bare integer,
// including AttitudeNone, with a short TTL.
type Attitude struct {
	client redis.UniversalClient
	load   func(ctx context.Context, userID, articleID int64) (domain.Attitude, error)
	opts   options
}

const attitudeCache = "article_attitude"

func NewAttitude(client redis.UniversalClient, load func(ctx context.Context, userID, articleID int64) (domain.Attitude, error), opts ...Option) *Attitude {
	return &Attitude{client: client, load: load, opts: buildOptions(opts)}
}

func (a *Attitude) Get(ctx context.Context, userID, articleID int64) (domain.Attitude, error) {
	key := AttitudeKey(userID, articleID)
	raw, err := a.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if v, perr := strconv.Atoi(raw); perr == nil {
			metrics.RecordCacheRequest(attitudeCache, metrics.ResultHit)
			return domain.Attitude(v), nil
		}
	case !errors.Is(err, redis.Nil):
		a.opts.degrade(ctx, attitudeCache, "get", key, err)
	}
	metrics.RecordCacheRequest(attitudeCache, metrics.ResultMiss)

	att, err := a.load(ctx, userID, articleID)
	if err != nil {
		return domain.AttitudeNone, err
	}
	if err := a.client.Set(ctx, key, int(att), AttitudeTTL.Next()).Err(); err != nil {
		a.opts.degrade(ctx, attitudeCache, "set", key, err)
	}
	return att, nil
}

func (a *Attitude) Clear(ctx context.Context, userID, articleID int64) error {
	key := AttitudeKey(userID, articleID)
	if err := a.client.Del(ctx, key).Err(); err != nil {
		a.opts.degrade(ctx, attitudeCache, "del", key, err)
		return err
	}
	return nil
}

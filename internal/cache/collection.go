package cache

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/oriys/contentcache/internal/domain"
	"github.com/oriys/contentcache/internal/metrics"
	"github.com/oriys/contentcache/internal/observability"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// PinBias is added to the epoch-second score of pinned children so that they
// rank above every unpinned child. It exceeds any epoch second this system
// will see (year 33658), and PinBias plus such a timestamp stays far below
// 2^53, so scores remain exact float64 integers.
const PinBias int64 = 1_000_000_000_000

// Score is the sorted-set score of a child: epoch seconds, plus PinBias when
// pinned. Children created in the same second tie, and a tie ranks by the
// decimal member string in reverse byte order, so id 9 precedes id 10.
func Score(r domain.Ref) int64 {
	s := r.At.Unix()
	if r.Pinned {
		s += PinBias
	}
	return s
}

// rankOrder sorts refs the way ZREVRANGE returns them, so a page served from
// a rebuild matches the same page served from the cached index.
func rankOrder(refs []domain.Ref) {
	slices.SortStableFunc(refs, func(a, b domain.Ref) int {
		if c := cmp.Compare(Score(b), Score(a)); c != 0 {
			return c
		}
		return cmp.Compare(itoa(b.ID), itoa(a.ID))
	})
}

// Strategy parameterizes an index: where it lives, how to tell a known-empty
// parent cheaply, how to rebuild it, and how long it lives.
type Strategy struct {
	Name string
	Key  func(parentID int64) string

	// Count is optional. When it reports 0 for an uncached parent the store
	// is not queried.
	Count func(ctx context.Context, parentID int64) int64

	// Query returns every child. The index reorders them by rank.
	Query func(ctx context.Context, parentID int64) ([]domain.Ref, error)

	TTL TTL
}

// Page is one page of a cursor-paginated index. Cursors are scores; 0 means
// none. End is the lowest score in the whole index, Last the lowest score on
// this page. The next page is requested with offset = Last.
type Page struct {
	Total int64
	End   int64
	Last  int64
	IDs   []int64
}

// Collection materializes an ordered child-id index per parent.
type Collection struct {
	client redis.UniversalClient
	s      Strategy
	opts   options
	group  singleflight.Group
}

func NewCollection(client redis.UniversalClient, s Strategy, opts ...Option) *Collection {
	return &Collection{client: client, s: s, opts: buildOptions(opts)}
}

func (c *Collection) Name() string { return c.s.Name }

// GetPage returns up to limit children with scores strictly below offset, or
// the first limit children when offset is 0.
func (c *Collection) GetPage(ctx context.Context, parentID, offset int64, limit int) (Page, error) {
	if limit <= 0 {
		return Page{}, nil
	}
	key := c.s.Key(parentID)

	pipe := c.client.Pipeline()
	card := pipe.ZCard(ctx, key)
	end := pipe.ZRangeWithScores(ctx, key, 0, 0)
	var rows *redis.ZSliceCmd
	if offset == 0 {
		rows = pipe.ZRevRangeWithScores(ctx, key, 0, int64(limit-1))
	} else {
		rows = pipe.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Max:   "(" + strconv.FormatInt(offset, 10),
			Min:   "-inf",
			Count: int64(limit),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.opts.degrade(ctx, c.s.Name, "page", key, err)
	} else if card.Val() > 0 {
		metrics.RecordCacheRequest(c.s.Name, metrics.ResultHit)
		page := Page{Total: card.Val(), IDs: make([]int64, 0, len(rows.Val()))}
		if zs := end.Val(); len(zs) > 0 {
			page.End = int64(zs[0].Score)
		}
		for _, z := range rows.Val() {
			if id, ok := memberID(z.Member); ok {
				page.IDs = append(page.IDs, id)
				page.Last = int64(z.Score)
			}
		}
		return page, nil
	}
	metrics.RecordCacheRequest(c.s.Name, metrics.ResultMiss)

	refs, err := c.load(ctx, parentID)
	if err != nil {
		return Page{}, err
	}
	return pageOf(refs, offset, limit), nil
}

func pageOf(refs []domain.Ref, offset int64, limit int) Page {
	if len(refs) == 0 {
		return Page{}
	}
	page := Page{Total: int64(len(refs)), End: Score(refs[0])}
	for _, r := range refs {
		s := Score(r)
		if s < page.End {
			page.End = s
		}
		if len(page.IDs) < limit && (offset == 0 || s < offset) {
			page.IDs = append(page.IDs, r.ID)
			page.Last = s
		}
	}
	return page
}

// GetRange serves page-number pagination (page starts at 1) over the same
// index and returns the total child count with the page's ids.
func (c *Collection) GetRange(ctx context.Context, parentID int64, page, perPage int) (int64, []int64, error) {
	if page < 1 || perPage <= 0 {
		return 0, nil, nil
	}
	key := c.s.Key(parentID)
	start := int64((page - 1) * perPage)
	stop := start + int64(perPage) - 1

	pipe := c.client.Pipeline()
	card := pipe.ZCard(ctx, key)
	rows := pipe.ZRevRange(ctx, key, start, stop)
	if _, err := pipe.Exec(ctx); err != nil {
		c.opts.degrade(ctx, c.s.Name, "range", key, err)
	} else if card.Val() > 0 {
		metrics.RecordCacheRequest(c.s.Name, metrics.ResultHit)
		ids := make([]int64, 0, len(rows.Val()))
		for _, m := range rows.Val() {
			if id, err := strconv.ParseInt(m, 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
		return card.Val(), ids, nil
	}
	metrics.RecordCacheRequest(c.s.Name, metrics.ResultMiss)

	refs, err := c.load(ctx, parentID)
	if err != nil {
		return 0, nil, err
	}
	total := int64(len(refs))
	if start >= total {
		return total, nil, nil
	}
	stop = min(stop, total-1)
	ids := make([]int64, 0, stop-start+1)
	for _, r := range refs[start : stop+1] {
		ids = append(ids, r.ID)
	}
	return total, ids, nil
}

// load rebuilds the index for parentID and returns its children in rank
// order. A parent whose counter is 0 yields nil without a store query.
func (c *Collection) load(ctx context.Context, parentID int64) ([]domain.Ref, error) {
	if c.s.Count != nil && c.s.Count(ctx, parentID) == 0 {
		return nil, nil
	}
	if !c.opts.singleFlight {
		return c.rebuild(ctx, parentID)
	}
	v, err, _ := c.group.Do(c.s.Key(parentID), func() (any, error) {
		return c.rebuild(ctx, parentID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Ref), nil
}

func (c *Collection) rebuild(ctx context.Context, parentID int64) ([]domain.Ref, error) {
	key := c.s.Key(parentID)
	ctx, span := observability.StartSpan(ctx, "cache.rebuild_index",
		observability.AttrCache.String(c.s.Name),
		observability.AttrKey.String(key),
	)
	defer span.End()

	start := time.Now()
	refs, err := c.s.Query(ctx, parentID)
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(observability.AttrCount.Int(len(refs)))
	rankOrder(refs)
	if len(refs) > 0 {
		c.fill(ctx, key, refs)
	}
	metrics.RecordPopulate(c.s.Name, time.Since(start))
	return refs, nil
}

// fill writes refs and the TTL in one pipeline. An index that was written but
// could not be given a TTL is deleted.
func (c *Collection) fill(ctx context.Context, key string, refs []domain.Ref) {
	members := make([]redis.Z, len(refs))
	for i, r := range refs {
		members[i] = redis.Z{Score: float64(Score(r)), Member: itoa(r.ID)}
	}

	var added *redis.IntCmd
	var expired *redis.BoolCmd
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.ZAdd(ctx, key, members...)
		expired = pipe.Expire(ctx, key, c.s.TTL.Next())
		return nil
	})
	if err != nil {
		c.opts.degrade(ctx, c.s.Name, "fill", key, err)
	}
	if added.Err() == nil && (expired.Err() != nil || !expired.Val()) {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.opts.log(ctx).Error("index left without ttl", "cache", c.s.Name, "key", key, "error", err)
		}
	}
}

// guarded reports whether key has more than the guard TTL left. Missing keys
// and keys without a TTL are not updated in place.
func (c *Collection) guarded(ctx context.Context, key string) bool {
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		c.opts.degrade(ctx, c.s.Name, "ttl", key, err)
		return false
	}
	if ttl <= c.opts.guard {
		metrics.RecordGuardSkip(c.s.Name)
		return false
	}
	return true
}

// Add appends one child to a populated index. It is a no-op unless the index
// has more than the update guard of TTL left.
func (c *Collection) Add(ctx context.Context, parentID int64, ref domain.Ref) bool {
	key := c.s.Key(parentID)
	if !c.guarded(ctx, key) {
		return false
	}
	err := c.client.ZAdd(ctx, key, redis.Z{Score: float64(Score(ref)), Member: itoa(ref.ID)}).Err()
	if err != nil {
		c.opts.degrade(ctx, c.s.Name, "zadd", key, err)
		return false
	}
	return true
}

// Remove drops one child from a populated index under the same guard as Add.
func (c *Collection) Remove(ctx context.Context, parentID, childID int64) bool {
	key := c.s.Key(parentID)
	if !c.guarded(ctx, key) {
		return false
	}
	if err := c.client.ZRem(ctx, key, itoa(childID)).Err(); err != nil {
		c.opts.degrade(ctx, c.s.Name, "zrem", key, err)
		return false
	}
	return true
}

func (c *Collection) Clear(ctx context.Context, parentID int64) error {
	key := c.s.Key(parentID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.opts.degrade(ctx, c.s.Name, "del", key, err)
		return err
	}
	return nil
}

func memberID(m any) (int64, bool) {
	s, ok := m.(string)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}

package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChannelTop holds the pinned article ids of each channel. It is the source
// of truth for the pin flag, not a cache, and carries no TTL.
type ChannelTop struct {
	p *Persistent
}

func NewChannelTop(p *Persistent) *ChannelTop {
	return &ChannelTop{p: p}
}

// Get returns the channel's pinned article ids, most recently pinned first.
func (t *ChannelTop) Get(ctx context.Context, channelID int64) []int64 {
	key := ChannelTopKey(channelID)
	var members []string
	err := t.p.read(ctx, key, func(c redis.UniversalClient) error {
		var err error
		members, err = c.ZRevRange(ctx, key, 0, -1).Result()
		return err
	})
	if err != nil {
		t.p.opts.degrade(ctx, "channel_top", "zrevrange", key, err)
		return nil
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// Contains reports whether articleID is pinned in channelID. Failures read
// as not pinned.
func (t *ChannelTop) Contains(ctx context.Context, channelID, articleID int64) bool {
	key := ChannelTopKey(channelID)
	err := t.p.read(ctx, key, func(c redis.UniversalClient) error {
		return c.ZScore(ctx, key, itoa(articleID)).Err()
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		t.p.opts.degrade(ctx, "channel_top", "zscore", key, err)
	}
	return err == nil
}

// Set pins or unpins articleID.
func (t *ChannelTop) Set(ctx context.Context, channelID, articleID int64, pinned bool) error {
	key := ChannelTopKey(channelID)
	return t.p.write(func(c redis.UniversalClient) error {
		if pinned {
			return c.ZAdd(ctx, key, redis.Z{Score: float64(time.Now().Unix()), Member: itoa(articleID)}).Err()
		}
		return c.ZRem(ctx, key, itoa(articleID)).Err()
	})
}

// History is a capped, per-user, most-recent-first list of strings.
type History struct {
	name  string
	key   func(userID int64) string
	limit int64
	p     *Persistent
	now   func() time.Time
}

// Reading and search history caps.
const (
	ReadingHistoryLimit   = 100
	SearchingHistoryLimit = 4
)

func NewReadingHistory(p *Persistent) *History {
	return &History{name: "reading_history", key: ReadingHistoryKey, limit: ReadingHistoryLimit, p: p, now: time.Now}
}

func NewSearchingHistory(p *Persistent) *History {
	return &History{name: "searching_history", key: SearchingHistoryKey, limit: SearchingHistoryLimit, p: p, now: time.Now}
}

// Push records value as the newest entry and trims the list to its cap.
// Pushing an existing value moves it to the front.
func (h *History) Push(ctx context.Context, userID int64, value string) error {
	key := h.key(userID)
	score := float64(h.now().UnixMicro()) / 1e6
	err := h.p.write(func(c redis.UniversalClient) error {
		_, err := c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: value})
			pipe.ZRemRangeByRank(ctx, key, 0, -(h.limit + 1))
			return nil
		})
		return err
	})
	if err != nil {
		h.p.opts.degrade(ctx, h.name, "push", key, err)
	}
	return err
}

// Page returns the total entry count and one page (starting at 1) of
// entries, newest first.
func (h *History) Page(ctx context.Context, userID int64, page, perPage int) (int64, []string) {
	if page < 1 || perPage <= 0 {
		return 0, nil
	}
	key := h.key(userID)
	start := int64((page - 1) * perPage)

	var total int64
	var values []string
	err := h.p.read(ctx, key, func(c redis.UniversalClient) error {
		pipe := c.Pipeline()
		card := pipe.ZCard(ctx, key)
		rows := pipe.ZRevRange(ctx, key, start, start+int64(perPage)-1)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		total, values = card.Val(), rows.Val()
		return nil
	})
	if err != nil {
		h.p.opts.degrade(ctx, h.name, "page", key, err)
		return 0, nil
	}
	return total, values
}

// All returns every entry, newest first.
func (h *History) All(ctx context.Context, userID int64) []string {
	_, values := h.Page(ctx, userID, 1, int(h.limit))
	return values
}

func (h *History) Clear(ctx context.Context, userID int64) error {
	key := h.key(userID)
	return h.p.write(func(c redis.UniversalClient) error {
		return c.Del(ctx, key).Err()
	})
}

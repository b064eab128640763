package content

import (
	"github.com/oriys/contentcache/internal/cache"
	"github.com/oriys/contentcache/internal/store"
)

// Counters holds one approximate counter per class.
type Counters struct {
	ArticleReading    *cache.Counter
	UserArticles      *cache.Counter
	ArticleCollecting *cache.Counter
	UserCollecting    *cache.Counter
	ArticleDislike    *cache.Counter
	ArticleLiking     *cache.Counter
	CommentLiking     *cache.Counter
	ArticleComments   *cache.Counter
	CommentReplies    *cache.Counter
	UserFollowings    *cache.Counter
	UserFollowers     *cache.Counter
	UserLiked         *cache.Counter
}

// CounterBinding pairs a counter with the aggregate that recomputes it.
type CounterBinding struct {
	Counter   *cache.Counter
	Aggregate store.Aggregate
}

// NewCounters binds every counter class to the persistent Redis pair.
func NewCounters(p *cache.Persistent) Counters {
	return Counters{
		ArticleReading:    cache.NewCounter(cache.CountArticleReading, p),
		UserArticles:      cache.NewCounter(cache.CountUserArticles, p),
		ArticleCollecting: cache.NewCounter(cache.CountArticleCollecting, p),
		UserCollecting:    cache.NewCounter(cache.CountUserCollecting, p),
		ArticleDislike:    cache.NewCounter(cache.CountArticleDislike, p),
		ArticleLiking:     cache.NewCounter(cache.CountArticleLiking, p),
		CommentLiking:     cache.NewCounter(cache.CountCommentLiking, p),
		ArticleComments:   cache.NewCounter(cache.CountArticleComments, p),
		CommentReplies:    cache.NewCounter(cache.CountCommentReplies, p),
		UserFollowings:    cache.NewCounter(cache.CountUserFollowings, p),
		UserFollowers:     cache.NewCounter(cache.CountUserFollowers, p),
		UserLiked:         cache.NewCounter(cache.CountUserLiked, p),
	}
}

// Reconcilable lists every counter that has a store aggregate. Article
// reading counts exist only in Redis and are never reset.
func (c Counters) Reconcilable() []CounterBinding {
	return []CounterBinding{
		{c.UserArticles, store.UserArticlesAggregate},
		{c.ArticleCollecting, store.ArticleCollectingAggregate},
		{c.UserCollecting, store.UserCollectingAggregate},
		{c.ArticleDislike, store.ArticleDislikeAggregate},
		{c.ArticleLiking, store.ArticleLikingAggregate},
		{c.CommentLiking, store.CommentLikingAggregate},
		{c.ArticleComments, store.ArticleCommentAggregate},
		{c.CommentReplies, store.CommentReplyAggregate},
		{c.UserFollowings, store.UserFollowingsAggregate},
		{c.UserFollowers, store.UserFollowersAggregate},
		{c.UserLiked, store.UserLikedAggregate},
	}
}

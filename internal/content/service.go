// Package content assembles the cache tier for articles, comments, users,
// relations and announcements. Reads go through the caches and are enriched
// with counters and author data at read time; mutations write the store and
// then adjust counters and caches explicitly.
package content

import (
	"context"
	"errors"

	"github.com/oriys/contentcache/internal/cache"
	"github.com/oriys/contentcache/internal/domain"
	"github.com/oriys/contentcache/internal/observability"
	"github.com/oriys/contentcache/internal/store"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrCommentsClosed is returned when commenting on an article that does
	// not allow comments.
	ErrCommentsClosed = errors.New("content: comments are closed")
)

// Options carries presentation settings applied at read time.
type Options struct {
	PhotoDomain  string
	DefaultPhoto string
}

// Service is the cache tier. All fields are safe for concurrent use.
type Service struct {
	store store.Store
	opts  Options

	Profiles       *cache.Object[domain.UserProfile]
	Statuses       *cache.Object[domain.UserStatus]
	Extras         *cache.Object[domain.UserExtra]
	ArticleInfos   *cache.Object[domain.ArticleInfo]
	ArticleDetails *cache.Object[domain.ArticleDetail]
	Comments       *cache.Object[domain.Comment]
	Notices        *cache.Object[domain.Announcement]
	Attitudes      *cache.Attitude

	CommentIndex     *cache.Collection
	ReplyIndex       *cache.Collection
	UserArticleIndex *cache.Collection
	CollectionIndex  *cache.Collection
	NoticeIndex      *cache.Collection

	Followings *cache.Relation
	Followers  *cache.Relation

	Counters   Counters
	ChannelTop *cache.ChannelTop
	Reading    *cache.History
	Searching  *cache.History
}

// NewService wires every cache. client holds the TTL-bound caches;
// persistent holds counters, channel tops and histories.
func NewService(st store.Store, client redis.UniversalClient, persistent *cache.Persistent, opts Options, cacheOpts ...cache.Option) *Service {
	s := &Service{
		store:      st,
		opts:       opts,
		Counters:   NewCounters(persistent),
		ChannelTop: cache.NewChannelTop(persistent),
		Reading:    cache.NewReadingHistory(persistent),
		Searching:  cache.NewSearchingHistory(persistent),
	}

	s.Profiles = cache.NewObject(client, cache.ObjectConfig[domain.UserProfile]{
		Name:        "user_profile",
		Key:         cache.UserProfileKey,
		TTL:         cache.UserProfileTTL,
		NegativeTTL: cache.UserNotExistsTTL,
		Load:        st.GetUserProfile,
	}, cacheOpts...)
	s.Statuses = cache.NewObject(client, cache.ObjectConfig[domain.UserStatus]{
		Name:        "user_status",
		Key:         cache.UserStatusKey,
		TTL:         cache.UserStatusTTL,
		NegativeTTL: cache.UserNotExistsTTL,
		Load:        st.GetUserStatus,
	}, cacheOpts...)
	s.Extras = cache.NewObject(client, cache.ObjectConfig[domain.UserExtra]{
		Name:        "user_extra",
		Key:         cache.UserExtraKey,
		TTL:         cache.UserExtraTTL,
		NegativeTTL: cache.UserNotExistsTTL,
		Load:        st.GetUserExtra,
	}, cacheOpts...)
	s.ArticleInfos = cache.NewObject(client, cache.ObjectConfig[domain.ArticleInfo]{
		Name:        "article_info",
		Key:         cache.ArticleInfoKey,
		TTL:         cache.ArticleInfoTTL,
		NegativeTTL: cache.ArticleNotExistsTTL,
		Load:        st.GetArticleInfo,
	}, cacheOpts...)
	s.ArticleDetails = cache.NewObject(client, cache.ObjectConfig[domain.ArticleDetail]{
		Name:        "article_detail",
		Key:         cache.ArticleDetailKey,
		TTL:         cache.ArticleDetailTTL,
		NegativeTTL: cache.ArticleNotExistsTTL,
		Load:        st.GetArticleDetail,
	}, cacheOpts...)
	s.Comments = cache.NewObject(client, cache.ObjectConfig[domain.Comment]{
		Name:        "comment",
		Key:         cache.CommentKey,
		TTL:         cache.CommentTTL,
		NegativeTTL: cache.CommentNotExistsTTL,
		Load:        st.GetComment,
		LoadMany: func(ctx context.Context, ids []int64) (map[int64]*domain.Comment, error) {
			rows, err := st.GetComments(ctx, ids)
			if err != nil {
				return nil, err
			}
			out := make(map[int64]*domain.Comment, len(rows))
			for _, c := range rows {
				out[c.ID] = c
			}
			return out, nil
		},
	}, cacheOpts...)
	s.Notices = cache.NewObject(client, cache.ObjectConfig[domain.Announcement]{
		Name:        "announcement",
		Key:         cache.AnnouncementKey,
		TTL:         cache.AnnouncementTTL,
		NegativeTTL: cache.AnnouncementNotExistsTTL,
		Load:        st.GetAnnouncement,
	}, cacheOpts...)
	s.Attitudes = cache.NewAttitude(client, st.GetAttitude, cacheOpts...)

	s.CommentIndex = cache.NewCollection(client, cache.Strategy{
		Name:  "article_comments",
		Key:   cache.ArticleCommentsKey,
		Count: s.Counters.ArticleComments.Get,
		Query: s.query(store.ArticleCommentsQuery),
		TTL:   cache.ArticleCommentsTTL,
	}, cacheOpts...)
	s.ReplyIndex = cache.NewCollection(client, cache.Strategy{
		Name:  "comment_replies",
		Key:   cache.CommentRepliesKey,
		Count: s.Counters.CommentReplies.Get,
		Query: s.query(store.CommentRepliesQuery),
		TTL:   cache.CommentRepliesTTL,
	}, cacheOpts...)
	s.UserArticleIndex = cache.NewCollection(client, cache.Strategy{
		Name:  "user_articles",
		Key:   cache.UserArticlesKey,
		Count: s.Counters.UserArticles.Get,
		Query: s.query(store.UserArticlesQuery),
		TTL:   cache.UserArticlesTTL,
	}, cacheOpts...)
	s.CollectionIndex = cache.NewCollection(client, cache.Strategy{
		Name:  "user_collections",
		Key:   cache.UserCollectionsKey,
		Count: s.Counters.UserCollecting.Get,
		Query: s.query(store.UserCollectionsQuery),
		TTL:   cache.UserCollectionsTTL,
	}, cacheOpts...)
	s.NoticeIndex = cache.NewCollection(client, cache.Strategy{
		Name:  "announcements",
		Key:   cache.AnnouncementsKey,
		Query: s.query(store.AnnouncementsQuery),
		TTL:   cache.AnnouncementsTTL,
	}, cacheOpts...)

	s.Followings = cache.NewRelation(client, cache.Strategy{
		Name:  "user_followings",
		Key:   cache.UserFollowingsKey,
		Count: s.Counters.UserFollowings.Get,
		Query: s.query(store.UserFollowingsQuery),
		TTL:   cache.UserFollowingsTTL,
	}, cacheOpts...)
	s.Followers = cache.NewRelation(client, cache.Strategy{
		Name:  "user_followers",
		Key:   cache.UserFollowersKey,
		Count: s.Counters.UserFollowers.Get,
		Query: s.query(store.UserFollowersQuery),
		TTL:   cache.UserFollowersTTL,
	}, cacheOpts...)

	return s
}

func (s *Service) query(q store.OrderedQuery) func(ctx context.Context, parentID int64) ([]domain.Ref, error) {
	return func(ctx context.Context, parentID int64) ([]domain.Ref, error) {
		ctx, span := observability.StartSpan(ctx, "store.query_ordered",
			observability.AttrStoreOrigin.String(q.Name),
			observability.AttrID.Int64(parentID),
		)
		defer span.End()
		refs, err := s.store.QueryOrdered(ctx, q, parentID)
		if err != nil {
			observability.SetSpanError(span, err)
		}
		return refs, err
	}
}

// Store exposes the backing store for callers that aggregate directly.
func (s *Service) Store() store.Store { return s.store }

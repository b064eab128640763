package store

import (
	"fmt"

	"github.com/oriys/contentcache/internal/domain"
)

// OrderedQuery describes a "all children of a parent, newest first" listing.
// Column and table names are compile-time constants of this package; they are
// never built from caller input.
type OrderedQuery struct {
	Name         string
	Table        string
	IDColumn     string
	TimeColumn   string
	PinColumn    string // optional; pinned rows sort first
	ParentColumn string // optional; empty means one global listing
	Filter       string
}

func (q OrderedQuery) sql() string {
	pin := "FALSE"
	if q.PinColumn != "" {
		pin = q.PinColumn
	}
	where := q.Filter
	if q.ParentColumn != "" {
		where = q.ParentColumn + " = $1 AND " + where
	}
	return fmt.Sprintf(
		`SELECT %s, %s, %s FROM %s WHERE %s ORDER BY 3 DESC, 2 DESC, 1 DESC`,
		q.IDColumn, q.TimeColumn, pin, q.Table, where,
	)
}

var (
	ArticleCommentsQuery = OrderedQuery{
		Name:         "article_comments",
		Table:        "news_comment",
		IDColumn:     "comment_id",
		TimeColumn:   "create_time",
		PinColumn:    "is_top",
		ParentColumn: "article_id",
		Filter:       fmt.Sprintf("parent_id IS NULL AND status = %d", domain.CommentApproved),
	}
	CommentRepliesQuery = OrderedQuery{
		Name:         "comment_replies",
		Table:        "news_comment",
		IDColumn:     "comment_id",
		TimeColumn:   "create_time",
		PinColumn:    "is_top",
		ParentColumn: "parent_id",
		Filter:       fmt.Sprintf("status = %d", domain.CommentApproved),
	}
	UserArticlesQuery = OrderedQuery{
		Name:         "user_articles",
		Table:        "news_article_basic",
		IDColumn:     "article_id",
		TimeColumn:   "create_time",
		ParentColumn: "user_id",
		Filter:       fmt.Sprintf("status = %d", domain.ArticleApproved),
	}
	UserCollectionsQuery = OrderedQuery{
		Name:         "user_collections",
		Table:        "news_collection",
		IDColumn:     "article_id",
		TimeColumn:   "update_time",
		ParentColumn: "user_id",
		Filter:       "is_deleted = FALSE",
	}
	UserFollowingsQuery = OrderedQuery{
		Name:         "user_followings",
		Table:        "user_relation",
		IDColumn:     "target_user_id",
		TimeColumn:   "update_time",
		ParentColumn: "user_id",
		Filter:       fmt.Sprintf("relation = %d", domain.RelationFollow),
	}
	UserFollowersQuery = OrderedQuery{
		Name:         "user_followers",
		Table:        "user_relation",
		IDColumn:     "user_id",
		TimeColumn:   "update_time",
		ParentColumn: "target_user_id",
		Filter:       fmt.Sprintf("relation = %d", domain.RelationFollow),
	}
	// AnnouncementsQuery has no count source: an empty announcement list
	// queries the store on every read. Intentional, do not add a counter.
	AnnouncementsQuery = OrderedQuery{
		Name:       "announcements",
		Table:      "global_announcement",
		IDColumn:   "announcement_id",
		TimeColumn: "publish_time",
		Filter:     fmt.Sprintf("status = %d", domain.AnnouncementPublished),
	}
)

// Aggregate describes a grouped count used to rebuild a counter class.
type Aggregate struct {
	Name        string
	From        string // table, optionally with joins
	GroupColumn string
	CountColumn string
	Filter      string
}

func (a Aggregate) sql() string {
	return fmt.Sprintf(
		`SELECT %s, COUNT(%s) FROM %s WHERE %s IS NOT NULL AND %s GROUP BY %s`,
		a.GroupColumn, a.CountColumn, a.From, a.GroupColumn, a.Filter, a.GroupColumn,
	)
}

var (
	UserArticlesAggregate = Aggregate{
		Name:        "user_articles",
		From:        "news_article_basic",
		GroupColumn: "user_id",
		CountColumn: "article_id",
		Filter:      fmt.Sprintf("status = %d", domain.ArticleApproved),
	}
	ArticleCollectingAggregate = Aggregate{
		Name:        "article_collecting",
		From:        "news_collection",
		GroupColumn: "article_id",
		CountColumn: "article_id",
		Filter:      "is_deleted = FALSE",
	}
	UserCollectingAggregate = Aggregate{
		Name:        "user_collecting",
		From:        "news_collection",
		GroupColumn: "user_id",
		CountColumn: "article_id",
		Filter:      "is_deleted = FALSE",
	}
	ArticleDislikeAggregate = Aggregate{
		Name:        "article_dislike",
		From:        "news_attitude",
		GroupColumn: "article_id",
		CountColumn: "attitude_id",
		Filter:      fmt.Sprintf("attitude = %d", domain.AttitudeDislike),
	}
	ArticleLikingAggregate = Aggregate{
		Name:        "article_liking",
		From:        "news_attitude",
		GroupColumn: "article_id",
		CountColumn: "attitude_id",
		Filter:      fmt.Sprintf("attitude = %d", domain.AttitudeLiking),
	}
	CommentLikingAggregate = Aggregate{
		Name:        "comment_liking",
		From:        "news_comment_liking",
		GroupColumn: "comment_id",
		CountColumn: "comment_id",
		Filter:      "is_deleted = FALSE",
	}
	ArticleCommentAggregate = Aggregate{
		Name:        "article_comment",
		From:        "news_comment",
		GroupColumn: "article_id",
		CountColumn: "comment_id",
		Filter:      fmt.Sprintf("parent_id IS NULL AND status = %d", domain.CommentApproved),
	}
	CommentReplyAggregate = Aggregate{
		Name:        "comment_reply",
		From:        "news_comment",
		GroupColumn: "parent_id",
		CountColumn: "comment_id",
		Filter:      fmt.Sprintf("status = %d", domain.CommentApproved),
	}
	UserFollowingsAggregate = Aggregate{
		Name:        "user_followings",
		From:        "user_relation",
		GroupColumn: "user_id",
		CountColumn: "target_user_id",
		Filter:      fmt.Sprintf("relation = %d", domain.RelationFollow),
	}
	UserFollowersAggregate = Aggregate{
		Name:        "user_followers",
		From:        "user_relation",
		GroupColumn: "target_user_id",
		CountColumn: "user_id",
		Filter:      fmt.Sprintf("relation = %d", domain.RelationFollow),
	}
	UserLikedAggregate = Aggregate{
		Name:        "user_liked",
		From:        "news_attitude a JOIN news_article_basic b ON b.article_id = a.article_id",
		GroupColumn: "b.user_id",
		CountColumn: "a.attitude_id",
		Filter:      fmt.Sprintf("a.attitude = %d", domain.AttitudeLiking),
	}
)

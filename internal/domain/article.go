package domain

import "time"

// ArticleStatus mirrors the moderation state of an article row.
type ArticleStatus int

const (
	ArticleDraft      ArticleStatus = 0
	ArticleUnreviewed ArticleStatus = 1
	ArticleApproved   ArticleStatus = 2
	ArticleFailed     ArticleStatus = 3
	ArticleDeleted    ArticleStatus = 4
	ArticleBanned     ArticleStatus = 5
)

// Attitude of a user toward an article.
type Attitude int

const (
	AttitudeNone    Attitude = -1
	AttitudeDislike Attitude = 0
	AttitudeLiking  Attitude = 1
)

// ArticleCover is the cover layout stored alongside an article.
type ArticleCover struct {
	Type   int      `json:"type"`
	Images []string `json:"images"`
}

// ArticleInfo is the cached summary used by feeds.
type ArticleInfo struct {
	ID           int64        `json:"art_id"`
	Title        string       `json:"title"`
	AuthorID     int64        `json:"aut_id"`
	PubDate      time.Time    `json:"pubdate"`
	ChannelID    int64        `json:"ch_id"`
	AllowComment bool         `json:"allow_comm"`
	Cover        ArticleCover `json:"cover"`
}

// ArticleInfoView is ArticleInfo joined with author name, live counts, and
// the channel pin flag.
type ArticleInfoView struct {
	ArticleInfo
	IsTop        bool   `json:"is_top"`
	AuthorName   string `json:"aut_name"`
	CommentCount int64  `json:"comm_count"`
	LikeCount    int64  `json:"like_count"`
	CollectCount int64  `json:"collect_count"`
}

// ArticleDetail is the cached full article.
type ArticleDetail struct {
	ID        int64     `json:"art_id"`
	Title     string    `json:"title"`
	PubDate   time.Time `json:"pubdate"`
	Content   string    `json:"content"`
	AuthorID  int64     `json:"aut_id"`
	ChannelID int64     `json:"ch_id"`
}

// ArticleDetailView is ArticleDetail joined with the author's name and photo.
type ArticleDetailView struct {
	ArticleDetail
	AuthorName  string `json:"aut_name"`
	AuthorPhoto string `json:"aut_photo"`
}

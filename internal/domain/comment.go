package domain

import "time"

// CommentStatus mirrors the moderation state of a comment row.
type CommentStatus int

const (
	CommentUnreviewed CommentStatus = 0
	CommentApproved   CommentStatus = 1
	CommentFailed     CommentStatus = 2
	CommentDeleted    CommentStatus = 3
)

// Comment is the cached canonical comment.
type Comment struct {
	ID       int64     `json:"com_id"`
	AuthorID int64     `json:"aut_id"`
	PubDate  time.Time `json:"pubdate"`
	Content  string    `json:"content"`
	IsTop    bool      `json:"is_top"`
}

// CommentView is a comment joined with author data and live counts.
type CommentView struct {
	Comment
	AuthorName  string `json:"aut_name"`
	AuthorPhoto string `json:"aut_photo"`
	LikeCount   int64  `json:"like_count"`
	ReplyCount  int64  `json:"reply_count"`
}

// NewComment is the input of a comment write.
type NewComment struct {
	UserID    int64
	ArticleID int64
	ParentID  int64 // 0 for a top-level comment
	Content   string
}

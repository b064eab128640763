package content

import (
	"context"
	"errors"

	"github.com/oriys/contentcache/internal/cache"
	"github.com/oriys/contentcache/internal/domain"
)

// ErrCommentNotFound is returned for unknown or unapproved comments.
var ErrCommentNotFound = errors.New("content: comment not found")

// CommentPage is one cursor page of comments or replies. Pass Last as the
// next offset; the listing is exhausted once Last equals End.
type CommentPage struct {
	Total    int64                 `json:"total_count"`
	End      int64                 `json:"end_id"`
	Last     int64                 `json:"last_id"`
	Comments []*domain.CommentView `json:"results"`
}

// Comment returns one comment with author data and live counts.
func (s *Service) Comment(ctx context.Context, commentID int64) (*domain.CommentView, error) {
	c, err := s.Comments.Get(ctx, commentID)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrCommentNotFound
	}
	if err != nil {
		return nil, err
	}
	views := s.commentViews(ctx, []*domain.Comment{c})
	return views[0], nil
}

// ArticleComments pages the article's top-level comments, pinned first.
// offset 0 requests the first page.
func (s *Service) ArticleComments(ctx context.Context, articleID, offset int64, limit int) (*CommentPage, error) {
	return s.commentPage(ctx, s.CommentIndex, articleID, offset, limit)
}

// CommentReplies pages the replies to one comment.
func (s *Service) CommentReplies(ctx context.Context, commentID, offset int64, limit int) (*CommentPage, error) {
	return s.commentPage(ctx, s.ReplyIndex, commentID, offset, limit)
}

func (s *Service) commentPage(ctx context.Context, index *cache.Collection, parentID, offset int64, limit int) (*CommentPage, error) {
	page, err := index.GetPage(ctx, parentID, offset, limit)
	if err != nil {
		return nil, err
	}
	comments, err := s.Comments.GetMany(ctx, page.IDs)
	if err != nil {
		return nil, err
	}
	return &CommentPage{
		Total:    page.Total,
		End:      page.End,
		Last:     page.Last,
		Comments: s.commentViews(ctx, comments),
	}, nil
}

// commentViews joins author data and counts. Counts for the whole batch are
// read in one pipeline per counter class.
func (s *Service) commentViews(ctx context.Context, comments []*domain.Comment) []*domain.CommentView {
	ids := make([]int64, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}
	likes := s.Counters.CommentLiking.GetMany(ctx, ids)
	replies := s.Counters.CommentReplies.GetMany(ctx, ids)

	views := make([]*domain.CommentView, len(comments))
	for i, c := range comments {
		v := &domain.CommentView{Comment: *c}
		v.AuthorName, v.AuthorPhoto = s.author(ctx, c.AuthorID)
		v.LikeCount = likes[c.ID]
		v.ReplyCount = replies[c.ID]
		views[i] = v
	}
	return views
}

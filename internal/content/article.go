package content

import (
	"context"
	"errors"

	"github.com/oriys/contentcache/internal/cache"
	"github.com/oriys/contentcache/internal/domain"
)

// ErrArticleNotFound is returned for unknown or unapproved articles.
var ErrArticleNotFound = errors.New("content: article not found")

// ArticleInfo returns the article summary joined with the author name, live
// counts and the channel pin flag.
func (s *Service) ArticleInfo(ctx context.Context, articleID int64) (*domain.ArticleInfoView, error) {
	a, err := s.ArticleInfos.Get(ctx, articleID)
	if err != nil {
		return nil, articleErr(err)
	}
	return s.articleView(ctx, a), nil
}

func (s *Service) articleView(ctx context.Context, a *domain.ArticleInfo) *domain.ArticleInfoView {
	v := &domain.ArticleInfoView{ArticleInfo: *a}
	v.AuthorName, _ = s.author(ctx, a.AuthorID)
	v.IsTop = s.ChannelTop.Contains(ctx, a.ChannelID, a.ID)
	v.CommentCount = s.Counters.ArticleComments.Get(ctx, a.ID)
	v.LikeCount = s.Counters.ArticleLiking.Get(ctx, a.ID)
	v.CollectCount = s.Counters.ArticleCollecting.Get(ctx, a.ID)
	return v
}

// ArticleDetail returns the full article with its author's name and photo.
func (s *Service) ArticleDetail(ctx context.Context, articleID int64) (*domain.ArticleDetailView, error) {
	d, err := s.ArticleDetails.Get(ctx, articleID)
	if err != nil {
		return nil, articleErr(err)
	}
	v := &domain.ArticleDetailView{ArticleDetail: *d}
	v.AuthorName, v.AuthorPhoto = s.author(ctx, d.AuthorID)
	return v, nil
}

func (s *Service) ArticleExists(ctx context.Context, articleID int64) (bool, error) {
	return s.ArticleInfos.Exists(ctx, articleID)
}

// AllowComment reports whether the article accepts comments. Unknown
// articles do not.
func (s *Service) AllowComment(ctx context.Context, articleID int64) (bool, error) {
	a, err := s.ArticleInfos.Get(ctx, articleID)
	if errors.Is(err, cache.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return a.AllowComment, nil
}

// UserArticles returns one page (starting at 1) of the author's approved
// articles, newest first.
func (s *Service) UserArticles(ctx context.Context, userID int64, page, perPage int) (int64, []*domain.ArticleInfoView, error) {
	return s.articlePage(ctx, s.UserArticleIndex, userID, page, perPage)
}

// UserCollections returns one page of the articles the user collected, most
// recently collected first.
func (s *Service) UserCollections(ctx context.Context, userID int64, page, perPage int) (int64, []*domain.ArticleInfoView, error) {
	return s.articlePage(ctx, s.CollectionIndex, userID, page, perPage)
}

func (s *Service) articlePage(ctx context.Context, c *cache.Collection, userID int64, page, perPage int) (int64, []*domain.ArticleInfoView, error) {
	total, ids, err := c.GetRange(ctx, userID, page, perPage)
	if err != nil {
		return 0, nil, err
	}
	infos, err := s.ArticleInfos.GetMany(ctx, ids)
	if err != nil {
		return 0, nil, err
	}
	views := make([]*domain.ArticleInfoView, len(infos))
	for i, a := range infos {
		views[i] = s.articleView(ctx, a)
	}
	return total, views, nil
}

// Attitude returns the user's attitude toward the article, AttitudeNone for
// anonymous users.
func (s *Service) Attitude(ctx context.Context, userID, articleID int64) (domain.Attitude, error) {
	if userID == 0 {
		return domain.AttitudeNone, nil
	}
	return s.Attitudes.Get(ctx, userID, articleID)
}

func articleErr(err error) error {
	if errors.Is(err, cache.ErrNotFound) {
		return ErrArticleNotFound
	}
	return err
}

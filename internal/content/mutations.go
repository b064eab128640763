package content

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/oriys/contentcache/internal/cache"
	"github.com/oriys/contentcache/internal/domain"
	"github.com/oriys/contentcache/internal/store"
)

var (
	ErrSelfFollow   = errors.New("content: user cannot follow themselves")
	ErrEmptyComment = errors.New("content: empty comment")
)

// Mutations write the store first and then adjust counters and caches.
// Cache-side failures are logged by the cache layer and never returned: the
// store write has already happened and the next rebuild or reconcile repairs
// any drift.

// bump applies delta to a counter, ignoring backend failures.
func bump(ctx context.Context, c *cache.Counter, id, delta int64) {
	_ = c.Incr(ctx, id, delta)
}

// Follow makes userID follow targetID.
func (s *Service) Follow(ctx context.Context, userID, targetID int64) error {
	if userID == targetID {
		return ErrSelfFollow
	}
	ok, err := s.Profiles.Exists(ctx, targetID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}

	prev, at, err := s.store.SetRelation(ctx, userID, targetID, domain.RelationFollow)
	if err != nil {
		return err
	}
	if prev == domain.RelationFollow {
		return nil
	}
	s.Followings.Update(ctx, userID, targetID, at, 1)
	s.Followers.Update(ctx, targetID, userID, at, 1)
	bump(ctx, s.Counters.UserFollowings, userID, 1)
	bump(ctx, s.Counters.UserFollowers, targetID, 1)
	return nil
}

// Unfollow deletes the follow edge. Other relation kinds are left alone.
func (s *Service) Unfollow(ctx context.Context, userID, targetID int64) error {
	prev, at, err := s.store.SetRelation(ctx, userID, targetID, domain.RelationDeleted)
	if err != nil {
		return err
	}
	if prev != domain.RelationFollow {
		return nil
	}
	s.Followings.Update(ctx, userID, targetID, at, -1)
	s.Followers.Update(ctx, targetID, userID, at, -1)
	bump(ctx, s.Counters.UserFollowings, userID, -1)
	bump(ctx, s.Counters.UserFollowers, targetID, -1)
	return nil
}

// AddComment stores a comment (ParentID 0) or a reply and appends it to the
// live index of its parent.
func (s *Service) AddComment(ctx context.Context, nc domain.NewComment) (*domain.Comment, error) {
	if strings.TrimSpace(nc.Content) == "" {
		return nil, ErrEmptyComment
	}
	allow, err := s.AllowComment(ctx, nc.ArticleID)
	if err != nil {
		return nil, err
	}
	if !allow {
		return nil, ErrCommentsClosed
	}
	if nc.ParentID != 0 {
		ok, err := s.Comments.Exists(ctx, nc.ParentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrCommentNotFound
		}
	}

	c, err := s.store.InsertComment(ctx, nc)
	if err != nil {
		return nil, err
	}
	s.Comments.Put(ctx, c.ID, c)
	ref := domain.Ref{ID: c.ID, At: c.PubDate}
	if nc.ParentID == 0 {
		bump(ctx, s.Counters.ArticleComments, nc.ArticleID, 1)
		s.CommentIndex.Add(ctx, nc.ArticleID, ref)
	} else {
		bump(ctx, s.Counters.CommentReplies, nc.ParentID, 1)
		s.ReplyIndex.Add(ctx, nc.ParentID, ref)
	}
	return c, nil
}

// SetAttitude records a like, a dislike, or (AttitudeNone) neither. The
// author's received-likes count follows the article's like count.
func (s *Service) SetAttitude(ctx context.Context, userID, articleID int64, att domain.Attitude) error {
	info, err := s.ArticleInfos.Get(ctx, articleID)
	if err != nil {
		return articleErr(err)
	}
	prev, err := s.store.SetAttitude(ctx, userID, articleID, att)
	if err != nil {
		return err
	}
	_ = s.Attitudes.Clear(ctx, userID, articleID)
	if prev == att {
		return nil
	}
	switch prev {
	case domain.AttitudeLiking:
		bump(ctx, s.Counters.ArticleLiking, articleID, -1)
		bump(ctx, s.Counters.UserLiked, info.AuthorID, -1)
	case domain.AttitudeDislike:
		bump(ctx, s.Counters.ArticleDislike, articleID, -1)
	}
	switch att {
	case domain.AttitudeLiking:
		bump(ctx, s.Counters.ArticleLiking, articleID, 1)
		bump(ctx, s.Counters.UserLiked, info.AuthorID, 1)
	case domain.AttitudeDislike:
		bump(ctx, s.Counters.ArticleDislike, articleID, 1)
	}
	return nil
}

// Collect adds or removes the article from the user's collection. The
// user's collection index is cleared because its order depends on the
// collection time.
func (s *Service) Collect(ctx context.Context, userID, articleID int64, collected bool) error {
	if collected {
		ok, err := s.ArticleInfos.Exists(ctx, articleID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrArticleNotFound
		}
	}
	changed, _, err := s.store.SetCollection(ctx, userID, articleID, collected)
	if err != nil {
		return err
	}
	_ = s.CollectionIndex.Clear(ctx, userID)
	if !changed {
		return nil
	}
	delta := int64(1)
	if !collected {
		delta = -1
	}
	bump(ctx, s.Counters.ArticleCollecting, articleID, delta)
	bump(ctx, s.Counters.UserCollecting, userID, delta)
	return nil
}

// ReadArticle returns the article detail and records the read: the reading
// count always, the user's reading history when signed in.
func (s *Service) ReadArticle(ctx context.Context, userID, articleID int64) (*domain.ArticleDetailView, error) {
	v, err := s.ArticleDetail(ctx, articleID)
	if err != nil {
		return nil, err
	}
	bump(ctx, s.Counters.ArticleReading, articleID, 1)
	if userID != 0 {
		_ = s.Reading.Push(ctx, userID, strconv.FormatInt(articleID, 10))
	}
	return v, nil
}

// UpdateProfile edits the profile and drops the cached copy.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, update domain.ProfileUpdate) error {
	if err := s.store.UpdateUserProfile(ctx, userID, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	_ = s.Profiles.Clear(ctx, userID)
	return nil
}

// SetArticleTop pins or unpins the article in its channel.
func (s *Service) SetArticleTop(ctx context.Context, articleID int64, pinned bool) error {
	info, err := s.ArticleInfos.Get(ctx, articleID)
	if err != nil {
		return articleErr(err)
	}
	return s.ChannelTop.Set(ctx, info.ChannelID, articleID, pinned)
}

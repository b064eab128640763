package content

import (
	"context"
	"errors"

	"github.com/oriys/contentcache/internal/cache"
	"github.com/oriys/contentcache/internal/domain"
)

// ErrUserNotFound is returned when the acting or target user does not exist.
var ErrUserNotFound = errors.New("content: user not found")

// photoURL resolves a stored photo key to a public URL.
func (s *Service) photoURL(photo string) string {
	if photo == "" {
		photo = s.opts.DefaultPhoto
	}
	return s.opts.PhotoDomain + photo
}

// Profile returns the user's profile with live counts and a resolved photo.
func (s *Service) Profile(ctx context.Context, userID int64) (*domain.UserProfileView, error) {
	p, err := s.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, userErr(err)
	}
	v := &domain.UserProfileView{UserProfile: *p}
	v.Photo = s.photoURL(p.Photo)
	v.ArticleCount = s.Counters.UserArticles.Get(ctx, userID)
	v.FollowCount = s.Counters.UserFollowings.Get(ctx, userID)
	v.FansCount = s.Counters.UserFollowers.Get(ctx, userID)
	v.LikeCount = s.Counters.UserLiked.Get(ctx, userID)
	return v, nil
}

// UserExists consults the negative cache before the store.
func (s *Service) UserExists(ctx context.Context, userID int64) (bool, error) {
	return s.Profiles.Exists(ctx, userID)
}

// author returns the display name and photo of userID. A missing or
// unreadable profile yields an empty name and the default photo.
func (s *Service) author(ctx context.Context, userID int64) (string, string) {
	p, err := s.Profiles.Get(ctx, userID)
	if err != nil {
		return "", s.photoURL("")
	}
	return p.Name, s.photoURL(p.Photo)
}

func userErr(err error) error {
	if errors.Is(err, cache.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

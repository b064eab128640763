package content

import (
	"context"
	"slices"
)

// RelatedUser is one entry of a followings or followers listing.
type RelatedUser struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Photo  string `json:"photo"`
	Mutual bool   `json:"mutual_follow"`
}

// FollowingsPage returns one page (starting at 1) of the users userID follows.
// Mutual marks users who follow back.
func (s *Service) FollowingsPage(ctx context.Context, userID int64, page, perPage int) (int64, []RelatedUser, error) {
	ids, err := s.Followings.Get(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	fans, err := s.Followers.Get(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	return int64(len(ids)), s.related(ctx, paginate(ids, page, perPage), fans), nil
}

// FollowersPage returns one page of userID's followers. Mutual marks users
// userID follows back.
func (s *Service) FollowersPage(ctx context.Context, userID int64, page, perPage int) (int64, []RelatedUser, error) {
	ids, err := s.Followers.Get(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	followings, err := s.Followings.Get(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	return int64(len(ids)), s.related(ctx, paginate(ids, page, perPage), followings), nil
}

// IsFollowing reports whether userID follows targetID.
func (s *Service) IsFollowing(ctx context.Context, userID, targetID int64) (bool, error) {
	return s.Followings.Contains(ctx, userID, targetID)
}

func (s *Service) related(ctx context.Context, ids, complement []int64) []RelatedUser {
	out := make([]RelatedUser, len(ids))
	for i, id := range ids {
		name, photo := s.author(ctx, id)
		out[i] = RelatedUser{ID: id, Name: name, Photo: photo, Mutual: slices.Contains(complement, id)}
	}
	return out
}

func paginate[T any](items []T, page, perPage int) []T {
	if page < 1 || perPage <= 0 {
		return nil
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return nil
	}
	return items[start:min(start+perPage, len(items))]
}

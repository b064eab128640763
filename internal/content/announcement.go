package content

import (
	"context"
	"errors"

	"github.com/oriys/contentcache/internal/cache"
	"github.com/oriys/contentcache/internal/domain"
)

// ErrAnnouncementNotFound is returned for unknown or unpublished notices.
var ErrAnnouncementNotFound = errors.New("content: announcement not found")

// announcementsParent keys the single global announcement listing.
const announcementsParent = 0

// Announcement returns one published announcement with its content.
func (s *Service) Announcement(ctx context.Context, id int64) (*domain.Announcement, error) {
	a, err := s.Notices.Get(ctx, id)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrAnnouncementNotFound
	}
	return a, err
}

// Announcements returns one page (starting at 1) of published
// announcements, newest first. Listing entries omit the content.
func (s *Service) Announcements(ctx context.Context, page, perPage int) (int64, []*domain.Announcement, error) {
	total, ids, err := s.NoticeIndex.GetRange(ctx, announcementsParent, page, perPage)
	if err != nil {
		return 0, nil, err
	}
	notices, err := s.Notices.GetMany(ctx, ids)
	if err != nil {
		return 0, nil, err
	}
	out := make([]*domain.Announcement, len(notices))
	for i, n := range notices {
		out[i] = &domain.Announcement{ID: n.ID, Title: n.Title, PubDate: n.PubDate}
	}
	return total, out, nil
}

package content

import (
	"context"
	"strconv"

	"github.com/oriys/contentcache/internal/domain"
)

// ReadingHistory returns one page (starting at 1) of the articles the user
// read most recently, with their summaries. Articles that have since
// disappeared are skipped but still counted in the total.
func (s *Service) ReadingHistory(ctx context.Context, userID int64, page, perPage int) (int64, []*domain.ArticleInfoView, error) {
	total, values := s.Reading.Page(ctx, userID, page, perPage)
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			ids = append(ids, id)
		}
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

// SearchHistory returns the user's recent search keywords, newest first.
func (s *Service) SearchHistory(ctx context.Context, userID int64) []string {
	return s.Searching.All(ctx, userID)
}

// RecordSearch remembers keyword for a signed-in user.
func (s *Service) RecordSearch(ctx context.Context, userID int64, keyword string) error {
	if userID == 0 || keyword == "" {
		return nil
	}
	return s.Searching.Push(ctx, userID, keyword)
}

func (s *Service) ClearSearchHistory(ctx context.Context, userID int64) error {
	return s.Searching.Clear(ctx, userID)
}

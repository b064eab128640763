package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oriys/contentcache/internal/domain"
)

func (s *PostgresStore) GetUserProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	p := &domain.UserProfile{ID: userID}
	var photo, intro, certi *string
	err := s.primary.QueryRow(ctx, `
		SELECT mobile, user_name, profile_photo, is_media, introduction, certificate
		FROM user_basic
		WHERE user_id = $1
	`, userID).Scan(&p.Mobile, &p.Name, &photo, &p.IsMedia, &intro, &certi)
	if err != nil {
		return nil, notFound(err, "get user profile")
	}
	p.Photo, p.Intro, p.Certi = deref(photo), deref(intro), deref(certi)
	return p, nil
}

func (s *PostgresStore) GetUserExtra(ctx context.Context, userID int64) (*domain.UserExtra, error) {
	e := &domain.UserExtra{ID: userID}
	var birthday *time.Time
	err := s.primary.QueryRow(ctx, `
		SELECT gender, birthday
		FROM user_profile
		WHERE user_id = $1
	`, userID).Scan(&e.Gender, &birthday)
	if err != nil {
		return nil, notFound(err, "get user extra")
	}
	if birthday != nil {
		e.Birthday = birthday.Format(time.DateOnly)
	}
	return e, nil
}

func (s *PostgresStore) GetUserStatus(ctx context.Context, userID int64) (*domain.UserStatus, error) {
	st := &domain.UserStatus{ID: userID}
	err := s.primary.QueryRow(ctx, `SELECT status FROM user_basic WHERE user_id = $1`, userID).Scan(&st.Status)
	if err != nil {
		return nil, notFound(err, "get user status")
	}
	return st, nil
}

func (s *PostgresStore) GetArticleInfo(ctx context.Context, articleID int64) (*domain.ArticleInfo, error) {
	a := &domain.ArticleInfo{ID: articleID}
	var cover []byte
	err := s.primary.QueryRow(ctx, `
		SELECT title, user_id, create_time, channel_id, allow_comment, cover
		FROM news_article_basic
		WHERE article_id = $1 AND status = $2
	`, articleID, int(domain.ArticleApproved)).Scan(&a.Title, &a.AuthorID, &a.PubDate, &a.ChannelID, &a.AllowComment, &cover)
	if err != nil {
		return nil, notFound(err, "get article info")
	}
	if len(cover) > 0 {
		if err := json.Unmarshal(cover, &a.Cover); err != nil {
			return nil, fmt.Errorf("decode article cover: %w", err)
		}
	}
	return a, nil
}

func (s *PostgresStore) GetArticleDetail(ctx context.Context, articleID int64) (*domain.ArticleDetail, error) {
	d := &domain.ArticleDetail{ID: articleID}
	err := s.primary.QueryRow(ctx, `
		SELECT b.title, b.create_time, COALESCE(c.content, ''), b.user_id, b.channel_id
		FROM news_article_basic b
		LEFT JOIN news_article_content c ON c.article_id = b.article_id
		WHERE b.article_id = $1 AND b.status = $2
	`, articleID, int(domain.ArticleApproved)).Scan(&d.Title, &d.PubDate, &d.Content, &d.AuthorID, &d.ChannelID)
	if err != nil {
		return nil, notFound(err, "get article detail")
	}
	return d, nil
}

// GetAttitude returns AttitudeNone when the user has no attitude row.
func (s *PostgresStore) GetAttitude(ctx context.Context, userID, articleID int64) (domain.Attitude, error) {
	var att *int
	err := s.primary.QueryRow(ctx, `
		SELECT attitude FROM news_attitude WHERE user_id = $1 AND article_id = $2
	`, userID, articleID).Scan(&att)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && att == nil) {
		return domain.AttitudeNone, nil
	}
	if err != nil {
		return domain.AttitudeNone, fmt.Errorf("get attitude: %w", err)
	}
	return domain.Attitude(*att), nil
}

const commentColumns = `comment_id, user_id, create_time, content, is_top`

func (s *PostgresStore) GetComment(ctx context.Context, commentID int64) (*domain.Comment, error) {
	c := &domain.Comment{}
	err := s.primary.QueryRow(ctx, `
		SELECT `+commentColumns+`
		FROM news_comment
		WHERE comment_id = $1 AND status = $2
	`, commentID, int(domain.CommentApproved)).Scan(&c.ID, &c.AuthorID, &c.PubDate, &c.Content, &c.IsTop)
	if err != nil {
		return nil, notFound(err, "get comment")
	}
	return c, nil
}

// GetComments returns the approved comments among ids in no particular order.
func (s *PostgresStore) GetComments(ctx context.Context, commentIDs []int64) ([]*domain.Comment, error) {
	if len(commentIDs) == 0 {
		return nil, nil
	}
	rows, err := s.primary.Query(ctx, `
		SELECT `+commentColumns+`
		FROM news_comment
		WHERE comment_id = ANY($1) AND status = $2
	`, commentIDs, int(domain.CommentApproved))
	if err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Comment, 0, len(commentIDs))
	for rows.Next() {
		c := &domain.Comment{}
		if err := rows.Scan(&c.ID, &c.AuthorID, &c.PubDate, &c.Content, &c.IsTop); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAnnouncement(ctx context.Context, announcementID int64) (*domain.Announcement, error) {
	a := &domain.Announcement{ID: announcementID}
	err := s.primary.QueryRow(ctx, `
		SELECT title, content, publish_time
		FROM global_announcement
		WHERE announcement_id = $1 AND status = $2
	`, announcementID, int(domain.AnnouncementPublished)).Scan(&a.Title, &a.Content, &a.PubDate)
	if err != nil {
		return nil, notFound(err, "get announcement")
	}
	return a, nil
}

// QueryOrdered lists every child of parentID ordered pinned first, then
// newest first, then by id descending.
func (s *PostgresStore) QueryOrdered(ctx context.Context, q OrderedQuery, parentID int64) ([]domain.Ref, error) {
	var args []any
	if q.ParentColumn != "" {
		args = append(args, parentID)
	}
	var refs []domain.Ref
	err := s.readReplica(ctx, q.Name, func(db querier) error {
		rows, err := db.Query(ctx, q.sql(), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		refs = refs[:0]
		for rows.Next() {
			var r domain.Ref
			if err := rows.Scan(&r.ID, &r.At, &r.Pinned); err != nil {
				return err
			}
			refs = append(refs, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Name, err)
	}
	return refs, nil
}

// AggregateGroupCount computes the ground truth for one counter class.
func (s *PostgresStore) AggregateGroupCount(ctx context.Context, a Aggregate) ([]domain.CountPair, error) {
	var pairs []domain.CountPair
	err := s.readReplica(ctx, a.Name, func(db querier) error {
		rows, err := db.Query(ctx, a.sql())
		if err != nil {
			return err
		}
		defer rows.Close()
		pairs = pairs[:0]
		for rows.Next() {
			var p domain.CountPair
			if err := rows.Scan(&p.ID, &p.Count); err != nil {
				return err
			}
			pairs = append(pairs, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", a.Name, err)
	}
	return pairs, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

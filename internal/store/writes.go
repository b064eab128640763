package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oriys/contentcache/internal/domain"
)

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID int64, update domain.ProfileUpdate) error {
	tag, err := s.primary.Exec(ctx, `
		UPDATE user_basic SET
			user_name = COALESCE($2, user_name),
			profile_photo = COALESCE($3, profile_photo),
			introduction = COALESCE($4, introduction)
		WHERE user_id = $1
	`, userID, update.Name, update.Photo, update.Intro)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRelation upserts the user->target relation and returns the kind it
// replaced. A missing row reads as RelationDeleted.
func (s *PostgresStore) SetRelation(ctx context.Context, userID, targetID int64, kind domain.RelationKind) (domain.RelationKind, time.Time, error) {
	now := time.Now()
	var previous *int
	err := pgx.BeginFunc(ctx, s.primary, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT relation FROM user_relation
			WHERE user_id = $1 AND target_user_id = $2
			FOR UPDATE
		`, userID, targetID).Scan(&previous)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO user_relation (user_id, target_user_id, relation, create_time, update_time)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (user_id, target_user_id) DO UPDATE SET
				relation = EXCLUDED.relation,
				update_time = EXCLUDED.update_time
		`, userID, targetID, int(kind), now)
		return err
	})
	if err != nil {
		return domain.RelationDeleted, time.Time{}, fmt.Errorf("set relation: %w", err)
	}
	if previous == nil {
		return domain.RelationDeleted, now, nil
	}
	return domain.RelationKind(*previous), now, nil
}

// InsertComment stores an approved comment or reply.
func (s *PostgresStore) InsertComment(ctx context.Context, nc domain.NewComment) (*domain.Comment, error) {
	var parent *int64
	if nc.ParentID != 0 {
		parent = &nc.ParentID
	}
	c := &domain.Comment{AuthorID: nc.UserID, Content: nc.Content}
	err := s.primary.QueryRow(ctx, `
		INSERT INTO news_comment (user_id, article_id, parent_id, content, is_top, status, create_time)
		VALUES ($1, $2, $3, $4, FALSE, $5, NOW())
		RETURNING comment_id, create_time
	`, nc.UserID, nc.ArticleID, parent, nc.Content, int(domain.CommentApproved)).Scan(&c.ID, &c.PubDate)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

// SetAttitude records the user's attitude and returns the previous one.
// AttitudeNone clears it.
func (s *PostgresStore) SetAttitude(ctx context.Context, userID, articleID int64, attitude domain.Attitude) (domain.Attitude, error) {
	previous := domain.AttitudeNone
	err := pgx.BeginFunc(ctx, s.primary, func(tx pgx.Tx) error {
		var prev *int
		err := tx.QueryRow(ctx, `
			SELECT attitude FROM news_attitude
			WHERE user_id = $1 AND article_id = $2
			FOR UPDATE
		`, userID, articleID).Scan(&prev)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if prev != nil {
			previous = domain.Attitude(*prev)
		}

		var value *int
		if attitude != domain.AttitudeNone {
			v := int(attitude)
			value = &v
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO news_attitude (user_id, article_id, attitude, create_time, update_time)
			VALUES ($1, $2, $3, NOW(), NOW())
			ON CONFLICT (user_id, article_id) DO UPDATE SET
				attitude = EXCLUDED.attitude,
				update_time = EXCLUDED.update_time
		`, userID, articleID, value)
		return err
	})
	if err != nil {
		return domain.AttitudeNone, fmt.Errorf("set attitude: %w", err)
	}
	return previous, nil
}

// SetCollection marks the article as collected or not for the user.
func (s *PostgresStore) SetCollection(ctx context.Context, userID, articleID int64, collected bool) (bool, time.Time, error) {
	now := time.Now()
	var wasDeleted *bool
	err := pgx.BeginFunc(ctx, s.primary, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT is_deleted FROM news_collection
			WHERE user_id = $1 AND article_id = $2
			FOR UPDATE
		`, userID, articleID).Scan(&wasDeleted)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO news_collection (user_id, article_id, is_deleted, create_time, update_time)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (user_id, article_id) DO UPDATE SET
				is_deleted = EXCLUDED.is_deleted,
				update_time = EXCLUDED.update_time
		`, userID, articleID, !collected, now)
		return err
	})
	if err != nil {
		return false, time.Time{}, fmt.Errorf("set collection: %w", err)
	}
	wasCollected := wasDeleted != nil && !*wasDeleted
	return wasCollected != collected, now, nil
}

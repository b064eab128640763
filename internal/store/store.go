package store

import (
	"context"
	"errors"
	"time"

	"github.com/oriys/contentcache/internal/domain"
)

// ErrNotFound is returned when a row does not exist or is filtered out by
// its status (unapproved article, deleted comment, unpublished notice).
var ErrNotFound = errors.New("store: not found")

// Store is the relational source of truth behind the cache tier.
//
// Point reads use explicit column projections and status filters; they always
// run on the primary because a cache populated from a lagging replica would
// remember a just-created row as absent. Listings and aggregates tolerate lag
// and are routed to replicas with failover to the primary.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	GetUserProfile(ctx context.Context, userID int64) (*domain.UserProfile, error)
	GetUserExtra(ctx context.Context, userID int64) (*domain.UserExtra, error)
	GetUserStatus(ctx context.Context, userID int64) (*domain.UserStatus, error)
	GetArticleInfo(ctx context.Context, articleID int64) (*domain.ArticleInfo, error)
	GetArticleDetail(ctx context.Context, articleID int64) (*domain.ArticleDetail, error)
	GetAttitude(ctx context.Context, userID, articleID int64) (domain.Attitude, error)
	GetComment(ctx context.Context, commentID int64) (*domain.Comment, error)
	GetComments(ctx context.Context, commentIDs []int64) ([]*domain.Comment, error)
	GetAnnouncement(ctx context.Context, announcementID int64) (*domain.Announcement, error)

	QueryOrdered(ctx context.Context, q OrderedQuery, parentID int64) ([]domain.Ref, error)
	AggregateGroupCount(ctx context.Context, a Aggregate) ([]domain.CountPair, error)

	UpdateUserProfile(ctx context.Context, userID int64, update domain.ProfileUpdate) error
	SetRelation(ctx context.Context, userID, targetID int64, kind domain.RelationKind) (previous domain.RelationKind, at time.Time, err error)
	InsertComment(ctx context.Context, c domain.NewComment) (*domain.Comment, error)
	SetAttitude(ctx context.Context, userID, articleID int64, attitude domain.Attitude) (previous domain.Attitude, err error)
	SetCollection(ctx context.Context, userID, articleID int64, collected bool) (changed bool, at time.Time, err error)
}

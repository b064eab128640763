package cache

import (
	"math/rand/v2"
	"time"
)

// TTL is an expiry class: Next returns Base plus a uniform jitter in
// [0, Jitter) so keys populated together do not expire together.
type TTL struct {
	Base   time.Duration
	Jitter time.Duration
}

// Next samples one expiry in [Base, Max).
func (t TTL) Next() time.Duration {
	if t.Jitter <= 0 {
		return t.Base
	}
	return t.Base + rand.N(t.Jitter)
}

// Max is the exclusive upper bound of Next.
func (t TTL) Max() time.Duration {
	if t.Jitter <= 0 {
		return t.Base
	}
	return t.Base + t.Jitter
}

// Expiry classes. Negative classes must stay below the positive Base of the
// entity they mark.
var (
	UserProfileTTL           = TTL{30 * time.Minute, 10 * time.Minute}
	UserStatusTTL            = TTL{60 * time.Minute, 10 * time.Minute}
	UserNotExistsTTL         = TTL{5 * time.Minute, time.Minute}
	UserExtraTTL             = TTL{10 * time.Minute, 2 * time.Minute}
	UserFollowingsTTL        = TTL{30 * time.Minute, 10 * time.Minute}
	UserFollowersTTL         = TTL{30 * time.Minute, 10 * time.Minute}
	UserArticlesTTL          = TTL{10 * time.Minute, 2 * time.Minute}
	UserCollectionsTTL       = TTL{10 * time.Minute, 2 * time.Minute}
	ArticleInfoTTL           = TTL{30 * time.Minute, 10 * time.Minute}
	ArticleNotExistsTTL      = TTL{5 * time.Minute, time.Minute}
	ArticleDetailTTL         = TTL{60 * time.Minute, 10 * time.Minute}
	ArticleCommentsTTL       = TTL{30 * time.Minute, 10 * time.Minute}
	CommentRepliesTTL        = TTL{30 * time.Minute, 10 * time.Minute}
	CommentTTL               = TTL{30 * time.Minute, 10 * time.Minute}
	CommentNotExistsTTL      = TTL{5 * time.Minute, time.Minute}
	AnnouncementTTL          = TTL{2 * time.Hour, 10 * time.Minute}
	AnnouncementNotExistsTTL = TTL{5 * time.Minute, time.Minute}
	AnnouncementsTTL         = TTL{Base: 48 * time.Hour}
	// An attitude of "none" is cached briefly; users tend to act right after
	// opening an article.
	AttitudeTTL = TTL{3 * time.Minute, 30 * time.Second}
)

package domain

import "time"

// RelationKind is the state of a user->target relation row.
type RelationKind int

const (
	RelationDeleted   RelationKind = 0
	RelationFollow    RelationKind = 1
	RelationBlacklist RelationKind = 2
)

// UserProfile is the cached canonical profile of a user.
// Counts are not part of it; they live in the counter store and are joined
// by UserProfileView.
type UserProfile struct {
	ID      int64  `json:"id"`
	Mobile  string `json:"mobile"`
	Name    string `json:"name"`
	Photo   string `json:"photo"`
	IsMedia bool   `json:"is_media"`
	Intro   string `json:"intro"`
	Certi   string `json:"certi"`
}

// UserProfileView is a profile enriched at read time.
type UserProfileView struct {
	UserProfile
	ArticleCount int64 `json:"art_count"`
	FollowCount  int64 `json:"follow_count"`
	FansCount    int64 `json:"fans_count"`
	LikeCount    int64 `json:"like_count"`
}

// UserExtra holds the additional profile facet (gender, birthday).
type UserExtra struct {
	ID       int64  `json:"id"`
	Gender   int    `json:"gender"`
	Birthday string `json:"birthday"`
}

// UserStatus is the account status facet.
type UserStatus struct {
	ID     int64 `json:"id"`
	Status int   `json:"status"`
}

// ProfileUpdate carries optional profile edits.
type ProfileUpdate struct {
	Name  *string
	Photo *string
	Intro *string
}

// Relation is one follow edge.
type Relation struct {
	UserID       int64
	TargetUserID int64
	Kind         RelationKind
	UpdatedAt    time.Time
}

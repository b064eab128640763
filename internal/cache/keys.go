package cache

import "strconv"

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

// Object keys.
func UserProfileKey(userID int64) string    { return "user:" + itoa(userID) + ":profile" }
func UserStatusKey(userID int64) string     { return "user:" + itoa(userID) + ":status" }
func UserExtraKey(userID int64) string      { return "user:" + itoa(userID) + ":profilex" }
func ArticleInfoKey(articleID int64) string { return "art:" + itoa(articleID) + ":info" }
func ArticleDetailKey(articleID int64) string {
	return "art:" + itoa(articleID) + ":detail"
}
func CommentKey(commentID int64) string { return "comm:" + itoa(commentID) }
func AnnouncementKey(announcementID int64) string {
	return "announcement:" + itoa(announcementID)
}
func AttitudeKey(userID, articleID int64) string {
	return "user:" + itoa(userID) + ":art:" + itoa(articleID) + ":liking"
}

// Index keys. Each holds a sorted set with a TTL.
func ArticleCommentsKey(articleID int64) string { return "art:" + itoa(articleID) + ":comm" }
func CommentRepliesKey(commentID int64) string  { return "comm:" + itoa(commentID) + ":reply" }
func UserArticlesKey(userID int64) string       { return "user:" + itoa(userID) + ":art" }
func UserCollectionsKey(userID int64) string {
	return "user:" + itoa(userID) + ":art:collection"
}
func UserFollowingsKey(userID int64) string { return "user:" + itoa(userID) + ":following" }
func UserFollowersKey(userID int64) string  { return "user:" + itoa(userID) + ":fans" }

// AnnouncementsKey ignores its argument; there is one global list.
func AnnouncementsKey(int64) string { return "announcement" }

// Persistent keys. These live on the counter primary and carry no TTL.
func ChannelTopKey(channelID int64) string    { return "ch:" + itoa(channelID) + ":art:top" }
func ReadingHistoryKey(userID int64) string   { return "user:" + itoa(userID) + ":his:reading" }
func SearchingHistoryKey(userID int64) string { return "user:" + itoa(userID) + ":his:searching" }

// Counter keys. One sorted set per class: member is the subject id, score the
// count.
const (
	CountArticleReading    = "count:art:reading"
	CountUserArticles      = "count:user:arts"
	CountArticleCollecting = "count:art:collecting"
	CountUserCollecting    = "count:user:art:collecting"
	CountArticleDislike    = "count:art:dislike"
	CountArticleLiking     = "count:art:liking"
	CountCommentLiking     = "count:comm:liking"
	CountArticleComments   = "count:art:comm"
	CountCommentReplies    = "count:art:reply"
	CountUserFollowings    = "count:user:followings"
	CountUserFollowers     = "count:user:followers"
	CountUserLiked         = "count:user:liked"
)

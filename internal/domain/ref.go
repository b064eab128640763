package domain

import "time"

// Ref is one child entry of an ordered parent listing: a comment under an
// article, an article of an author, a follower of a user.
type Ref struct {
	ID     int64
	At     time.Time
	Pinned bool
}

// CountPair is one ground-truth row of a grouped count.
type CountPair struct {
	ID    int64
	Count int64
}

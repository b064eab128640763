package domain

import "time"

// AnnouncementStatus mirrors the publishing state of an announcement.
type AnnouncementStatus int

const (
	AnnouncementUnpublished AnnouncementStatus = 0
	AnnouncementPublished   AnnouncementStatus = 1
	AnnouncementRevoked     AnnouncementStatus = 2
)

// Announcement is a system notice.
type Announcement struct {
	ID      int64     `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content,omitempty"`
	PubDate time.Time `json:"pubdate"`
}

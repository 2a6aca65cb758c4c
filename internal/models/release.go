package models

import "time"

// Release is the current observed state of one (tracker, tag) pair. At most
// one row exists per pair; superseded states live in ReleaseHistory and are
// projected back into listings with IsHistorical set.
type Release struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	TrackerName    string    `gorm:"size:64;not null;uniqueIndex:idx_releases_tracker_tag"`
	TagName        string    `gorm:"size:128;not null;uniqueIndex:idx_releases_tracker_tag"`
	Name           string    `gorm:"size:256"`
	Version        string    `gorm:"size:128"`
	PublishedAt    time.Time `gorm:"index"`
	URL            string    `gorm:"size:512"`
	Prerelease     bool      `gorm:"default:false"`
	Body           string    `gorm:"type:text"`
	ChannelName    string    `gorm:"size:32"`
	CommitSHA      string    `gorm:"size:64"`
	RepublishCount int       `gorm:"default:0"`
	IsHistorical   bool      `gorm:"default:false"`
	CreatedAt      time.Time
}

// ReleaseHistory is an append-only snapshot of the state a release carried
// before a republish replaced it.
type ReleaseHistory struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ReleaseID   uint   `gorm:"not null;index"`
	Name        string `gorm:"size:256"`
	CommitSHA   string `gorm:"size:64"`
	PublishedAt time.Time
	Body        string `gorm:"type:text"`
	ChannelName string `gorm:"size:32"`
	RecordedAt  time.Time
}

package models

import "time"

// Delivery records the outcome of one notification delivery attempt cycle.
type Delivery struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	NotifierName string `gorm:"size:64;index"`
	Event        string `gorm:"size:16"`
	TrackerName  string `gorm:"size:64;index"`
	TagName      string `gorm:"size:128"`
	Attempts     int
	Success      bool   `gorm:"index"`
	Error        string `gorm:"type:text"`
	CreatedAt    time.Time
}

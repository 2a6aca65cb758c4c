package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tracker type constants.
const (
	TrackerGitHub = "github"
	TrackerGitLab = "gitlab"
	TrackerHelm   = "helm"
)

// Channel name constants.
const (
	ChannelStable     = "stable"
	ChannelPrerelease = "prerelease"
	ChannelBeta       = "beta"
	ChannelCanary     = "canary"
)

// Channel type filters. An empty type accepts both releases and prereleases.
const (
	ChannelTypeRelease    = "release"
	ChannelTypePrerelease = "prerelease"
)

// Tracker is the persisted configuration for one watched upstream source.
type Tracker struct {
	Name            string `gorm:"primaryKey;size:64"`
	Type            string `gorm:"size:16;not null"`
	Repo            string `gorm:"size:256"`
	Instance        string `gorm:"size:256"`
	Project         string `gorm:"size:256"`
	Chart           string `gorm:"size:128"`
	CredentialName  string `gorm:"size:64"`
	Channels        string `gorm:"type:json"`
	Interval        int    `gorm:"default:360"`
	Schedule        string `gorm:"size:64"`
	RepublishOnBody bool   `gorm:"default:true"`
	Enabled         bool   `gorm:"default:true"`
	Description     string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Channel is one classification rule inside a Tracker's ordered channel list.
// It is stored as part of the Tracker.Channels JSON column.
type Channel struct {
	Name           string `json:"name"`
	Type           string `json:"type,omitempty"`
	IncludePattern string `json:"include_pattern,omitempty"`
	ExcludePattern string `json:"exclude_pattern,omitempty"`
	Enabled        bool   `json:"enabled"`
}

// ParseChannels decodes a Tracker.Channels JSON column into its ordered rules.
// An empty column yields an empty list.
func ParseChannels(raw string) ([]Channel, error) {
	if raw == "" {
		return nil, nil
	}
	var channels []Channel
	if err := json.Unmarshal([]byte(raw), &channels); err != nil {
		return nil, fmt.Errorf("models: parse channels: %w", err)
	}
	return channels, nil
}

// MarshalChannels encodes an ordered channel list for the Channels column.
func MarshalChannels(channels []Channel) (string, error) {
	if channels == nil {
		channels = []Channel{}
	}
	data, err := json.Marshal(channels)
	if err != nil {
		return "", fmt.Errorf("models: marshal channels: %w", err)
	}
	return string(data), nil
}

// TrackerStatus is the scheduler-owned health row for a tracker.
type TrackerStatus struct {
	Name        string `gorm:"primaryKey;size:64"`
	Type        string `gorm:"size:16"`
	Enabled     bool   `gorm:"default:true"`
	LastCheck   *time.Time
	LastVersion string `gorm:"size:128"`
	Error       string `gorm:"type:text"`
	UpdatedAt   time.Time
}

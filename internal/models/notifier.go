package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Notifier type constants.
const (
	NotifierWebhook = "webhook"
	NotifierSlack   = "slack"
	NotifierDiscord = "discord"
)

// Notifier is a configured notification endpoint.
type Notifier struct {
	Name      string `gorm:"primaryKey;size:64"`
	Type      string `gorm:"size:16;not null"`
	URL       string `gorm:"size:512;not null"`
	Events    string `gorm:"type:json"`
	Enabled   bool   `gorm:"default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParseEvents decodes the Events JSON column into the subscribed event kinds.
func ParseEvents(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var events []string
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, fmt.Errorf("models: parse events: %w", err)
	}
	return events, nil
}

// MarshalEvents encodes event kinds for the Events column.
func MarshalEvents(events []string) (string, error) {
	if events == nil {
		events = []string{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("models: marshal events: %w", err)
	}
	return string(data), nil
}

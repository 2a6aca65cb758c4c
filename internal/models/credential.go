package models

import "time"

// Credential holds an API token for authenticated upstream access. Token is
// an opaque blob produced by the configured cipher; listings never expose it
// unmasked.
type Credential struct {
	Name        string `gorm:"primaryKey;size:64"`
	Type        string `gorm:"size:16"`
	Token       string `gorm:"type:text;not null"`
	Description string `gorm:"size:256"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

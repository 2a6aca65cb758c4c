package db

import (
	"fmt"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Tracker{},
		&models.TrackerStatus{},
		&models.Release{},
		&models.ReleaseHistory{},
		&models.Notifier{},
		&models.Credential{},
		&models.Delivery{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedTrackers upserts Tracker rows from configuration. Later API edits win
// over the config file until the next seed.
func SeedTrackers(db *gorm.DB, trackers []config.TrackerConfig) error {
	for _, tc := range trackers {
		channels := make([]models.Channel, 0, len(tc.Channels))
		for _, cc := range tc.Channels {
			channels = append(channels, models.Channel{
				Name:           cc.Name,
				Type:           cc.Type,
				IncludePattern: cc.IncludePattern,
				ExcludePattern: cc.ExcludePattern,
				Enabled:        config.BoolOr(cc.Enabled, true),
			})
		}
		raw, err := models.MarshalChannels(channels)
		if err != nil {
			return fmt.Errorf("db: marshal channels for tracker %q: %w", tc.Name, err)
		}

		tracker := models.Tracker{
			Name:            tc.Name,
			Type:            tc.Type,
			Repo:            tc.Repo,
			Instance:        tc.Instance,
			Project:         tc.Project,
			Chart:           tc.Chart,
			CredentialName:  tc.CredentialName,
			Channels:        raw,
			Interval:        tc.Interval,
			Schedule:        tc.Schedule,
			RepublishOnBody: config.BoolOr(tc.RepublishOnBody, true),
			Enabled:         config.BoolOr(tc.Enabled, true),
			Description:     tc.Description,
		}

		result := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"type", "repo", "instance", "project", "chart", "credential_name",
				"channels", "interval", "schedule", "republish_on_body", "enabled", "description",
			}),
		}).Create(&tracker)
		if result.Error != nil {
			return fmt.Errorf("db: seed tracker %q: %w", tc.Name, result.Error)
		}
	}
	return nil
}

// SeedNotifiers upserts Notifier rows from configuration.
func SeedNotifiers(db *gorm.DB, notifiers []config.NotifierConfig) error {
	for _, nc := range notifiers {
		events, err := models.MarshalEvents(nc.Events)
		if err != nil {
			return fmt.Errorf("db: marshal events for notifier %q: %w", nc.Name, err)
		}

		notifier := models.Notifier{
			Name:    nc.Name,
			Type:    nc.Type,
			URL:     nc.URL,
			Events:  events,
			Enabled: config.BoolOr(nc.Enabled, true),
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "url", "events", "enabled"}),
		}).Create(&notifier)
		if result.Error != nil {
			return fmt.Errorf("db: seed notifier %q: %w", nc.Name, result.Error)
		}
	}
	return nil
}

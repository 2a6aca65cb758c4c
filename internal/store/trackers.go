package store

import (
	"fmt"

	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetTracker loads one tracker config by name.
func (s *Store) GetTracker(name string) (models.Tracker, error) {
	var tracker models.Tracker
	if err := s.db.Where("name = ?", name).First(&tracker).Error; err != nil {
		return models.Tracker{}, fmt.Errorf("store: get tracker %s: %w", name, err)
	}
	return tracker, nil
}

// ListTrackers returns all tracker configs ordered by name.
func (s *Store) ListTrackers() ([]models.Tracker, error) {
	var trackers []models.Tracker
	if err := s.db.Order("name ASC").Find(&trackers).Error; err != nil {
		return nil, fmt.Errorf("store: list trackers: %w", err)
	}
	return trackers, nil
}

// EnabledTrackers returns the trackers the scheduler should arm.
func (s *Store) EnabledTrackers() ([]models.Tracker, error) {
	var trackers []models.Tracker
	if err := s.db.Where("enabled = ?", true).Order("name ASC").Find(&trackers).Error; err != nil {
		return nil, fmt.Errorf("store: enabled trackers: %w", err)
	}
	return trackers, nil
}

// SaveTracker creates or updates a tracker config.
func (s *Store) SaveTracker(tracker *models.Tracker) error {
	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"type", "repo", "instance", "project", "chart", "credential_name",
			"channels", "interval", "schedule", "republish_on_body", "enabled", "description",
		}),
	}).Create(tracker)
	if result.Error != nil {
		return fmt.Errorf("store: save tracker %s: %w", tracker.Name, result.Error)
	}
	return nil
}

// DeleteTracker removes a tracker config and everything keyed by it:
// releases, history snapshots and the status row.
func (s *Store) DeleteTracker(name string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("name = ?", name).Delete(&models.Tracker{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: delete tracker %s: %w", name, err)
	}
	return s.DeleteTrackerData(name)
}

// UpsertStatus writes a tracker's status row. The scheduler is the only
// writer; everyone else reads.
func (s *Store) UpsertStatus(status models.TrackerStatus) error {
	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"type", "enabled", "last_check", "last_version", "error", "updated_at",
		}),
	}).Create(&status)
	if result.Error != nil {
		return fmt.Errorf("store: upsert status %s: %w", status.Name, result.Error)
	}
	return nil
}

// GetStatus loads one tracker's status row.
func (s *Store) GetStatus(name string) (models.TrackerStatus, error) {
	var status models.TrackerStatus
	if err := s.db.Where("name = ?", name).First(&status).Error; err != nil {
		return models.TrackerStatus{}, fmt.Errorf("store: get status %s: %w", name, err)
	}
	return status, nil
}

// ListStatuses returns a page of status rows ordered by name, plus the total
// match count. search matches the tracker name.
func (s *Store) ListStatuses(skip, limit int, search string) ([]models.TrackerStatus, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.Model(&models.TrackerStatus{})
	if search != "" {
		q = q.Where("name LIKE ?", "%"+search+"%")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: count statuses: %w", err)
	}
	var statuses []models.TrackerStatus
	if err := q.Order("name ASC").Offset(skip).Limit(limit).Find(&statuses).Error; err != nil {
		return nil, 0, fmt.Errorf("store: list statuses: %w", err)
	}
	return statuses, total, nil
}

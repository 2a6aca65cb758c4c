package store

import (
	"fmt"
	"log"

	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetNotifier loads one notifier by name.
func (s *Store) GetNotifier(name string) (models.Notifier, error) {
	var notifier models.Notifier
	if err := s.db.Where("name = ?", name).First(&notifier).Error; err != nil {
		return models.Notifier{}, fmt.Errorf("store: get notifier %s: %w", name, err)
	}
	return notifier, nil
}

// ListNotifiers returns all notifiers ordered by name.
func (s *Store) ListNotifiers() ([]models.Notifier, error) {
	var notifiers []models.Notifier
	if err := s.db.Order("name ASC").Find(&notifiers).Error; err != nil {
		return nil, fmt.Errorf("store: list notifiers: %w", err)
	}
	return notifiers, nil
}

// NotifiersForEvent returns the enabled notifiers subscribed to an event
// kind. Loaded fresh on every dispatch so notifier edits take effect
// immediately. A notifier with an undecodable events column is skipped.
func (s *Store) NotifiersForEvent(event string) ([]models.Notifier, error) {
	var notifiers []models.Notifier
	if err := s.db.Where("enabled = ?", true).Find(&notifiers).Error; err != nil {
		return nil, fmt.Errorf("store: notifiers for %s: %w", event, err)
	}

	subscribed := make([]models.Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		events, err := models.ParseEvents(n.Events)
		if err != nil {
			log.Printf("store: notifier %s: %v", n.Name, err)
			continue
		}
		for _, e := range events {
			if e == event {
				subscribed = append(subscribed, n)
				break
			}
		}
	}
	return subscribed, nil
}

// SaveNotifier creates or updates a notifier.
func (s *Store) SaveNotifier(notifier *models.Notifier) error {
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "url", "events", "enabled"}),
	}).Create(notifier)
	if result.Error != nil {
		return fmt.Errorf("store: save notifier %s: %w", notifier.Name, result.Error)
	}
	return nil
}

// DeleteNotifier removes a notifier and its delivery log.
func (s *Store) DeleteNotifier(name string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("name = ?", name).Delete(&models.Notifier{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("notifier_name = ?", name).Delete(&models.Delivery{}).Error
	})
	if err != nil {
		return fmt.Errorf("store: delete notifier %s: %w", name, err)
	}
	return nil
}

// LogDelivery appends one delivery outcome to the log.
func (s *Store) LogDelivery(delivery *models.Delivery) error {
	if err := s.db.Create(delivery).Error; err != nil {
		return fmt.Errorf("store: log delivery for %s: %w", delivery.NotifierName, err)
	}
	return nil
}

// ListDeliveries returns the newest delivery log entries for a notifier.
// An empty name lists across all notifiers.
func (s *Store) ListDeliveries(notifierName string, limit int) ([]models.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.Order("created_at DESC").Limit(limit)
	if notifierName != "" {
		q = q.Where("notifier_name = ?", notifierName)
	}
	var deliveries []models.Delivery
	if err := q.Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("store: list deliveries: %w", err)
	}
	return deliveries, nil
}

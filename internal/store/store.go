// Package store is the durable release table and its companions: tracker
// configs, tracker status, notifiers, credentials and the delivery log.
// Record is the detection core: given an observed release it decides whether
// the upstream state is new, republished or unchanged.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/signalbox/internal/models"
	"gorm.io/gorm"
)

// Outcome is the result of recording an observed release.
type Outcome string

const (
	// OutcomeCreated means the (tracker, tag) pair was seen for the first time.
	OutcomeCreated Outcome = "created"
	// OutcomeRepublished means the tag was known but its content changed.
	OutcomeRepublished Outcome = "republished"
	// OutcomeUnchanged means the stored state already matches upstream.
	OutcomeUnchanged Outcome = "unchanged"
)

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// New creates a Store.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle for migration and seeding.
func (s *Store) DB() *gorm.DB { return s.db }

// IsNotFound reports whether an error is a missing-row error.
func (s *Store) IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Record persists an observed release and classifies the observation.
//
// A new (tracker, tag) pair inserts and yields Created. A known pair is
// compared by commit SHA when both sides carry one; otherwise by body, but
// only when republishOnBody is set (charts have no commit concept, and some
// operators do not want release-note edits to count). Identical content
// yields Unchanged with no mutation, except that a newly available SHA is
// backfilled onto the row so later republishes stay detectable. Changed
// content snapshots the prior state into ReleaseHistory and updates the
// live row with an incremented republish count.
//
// The unique index on (tracker_name, tag_name) backstops the scheduler's
// per-tracker exclusivity.
func (s *Store) Record(rel *models.Release, republishOnBody bool) (Outcome, error) {
	var outcome Outcome
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Release
		err := tx.Where("tracker_name = ? AND tag_name = ?", rel.TrackerName, rel.TagName).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rel.RepublishCount = 0
			rel.IsHistorical = false
			if err := tx.Create(rel).Error; err != nil {
				return fmt.Errorf("insert release %s/%s: %w", rel.TrackerName, rel.TagName, err)
			}
			outcome = OutcomeCreated
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup release %s/%s: %w", rel.TrackerName, rel.TagName, err)
		}

		republished := false
		switch {
		case rel.CommitSHA != "" && existing.CommitSHA != "":
			republished = rel.CommitSHA != existing.CommitSHA
		case republishOnBody:
			republished = rel.Body != existing.Body
		}

		if !republished {
			outcome = OutcomeUnchanged
			rel.ID = existing.ID
			rel.RepublishCount = existing.RepublishCount
			if existing.CommitSHA == "" && rel.CommitSHA != "" {
				// SHA backfill: no history row, no count bump, no event.
				if err := tx.Model(&existing).Update("commit_sha", rel.CommitSHA).Error; err != nil {
					return fmt.Errorf("backfill commit sha for %s/%s: %w", rel.TrackerName, rel.TagName, err)
				}
			}
			return nil
		}

		history := models.ReleaseHistory{
			ReleaseID:   existing.ID,
			Name:        existing.Name,
			CommitSHA:   existing.CommitSHA,
			PublishedAt: existing.PublishedAt,
			Body:        existing.Body,
			ChannelName: existing.ChannelName,
			RecordedAt:  time.Now(),
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("snapshot history for %s/%s: %w", rel.TrackerName, rel.TagName, err)
		}

		rel.ID = existing.ID
		rel.RepublishCount = existing.RepublishCount + 1
		rel.CreatedAt = existing.CreatedAt
		if rel.CommitSHA == "" {
			rel.CommitSHA = existing.CommitSHA
		}
		updates := map[string]interface{}{
			"name":            rel.Name,
			"version":         rel.Version,
			"published_at":    rel.PublishedAt,
			"url":             rel.URL,
			"prerelease":      rel.Prerelease,
			"body":            rel.Body,
			"channel_name":    rel.ChannelName,
			"commit_sha":      rel.CommitSHA,
			"republish_count": rel.RepublishCount,
		}
		if err := tx.Model(&models.Release{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update release %s/%s: %w", rel.TrackerName, rel.TagName, err)
		}
		outcome = OutcomeRepublished
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store: record: %w", err)
	}
	return outcome, nil
}

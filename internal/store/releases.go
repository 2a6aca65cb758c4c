package store

import (
	"fmt"
	"sort"

	"github.com/zulandar/signalbox/internal/channel"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/provider"
	"gorm.io/gorm"
)

// ReleaseFilter narrows release listings.
type ReleaseFilter struct {
	Tracker        string
	Search         string // matches tracker, name, tag and version
	Prerelease     *bool
	IncludeHistory bool
	Skip           int
	Limit          int
}

// ListReleases returns a page of releases ordered by published_at
// descending, plus the total match count. With IncludeHistory set, history
// snapshots are projected into the listing flagged IsHistorical.
func (s *Store) ListReleases(f ReleaseFilter) ([]models.Release, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	fetch := f.Skip + f.Limit

	var current []models.Release
	q := s.filterReleases(s.db.Model(&models.Release{}), f, "")
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: count releases: %w", err)
	}
	if err := q.Order("published_at DESC").Limit(fetch).Find(&current).Error; err != nil {
		return nil, 0, fmt.Errorf("store: list releases: %w", err)
	}

	rows := current
	if f.IncludeHistory {
		historical, histTotal, err := s.historyProjection(f, fetch)
		if err != nil {
			return nil, 0, err
		}
		total += histTotal
		rows = append(rows, historical...)
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].PublishedAt.After(rows[j].PublishedAt)
		})
	}

	if f.Skip >= len(rows) {
		return nil, total, nil
	}
	rows = rows[f.Skip:]
	if len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, total, nil
}

// historyProjection loads history snapshots joined to their live rows and
// shapes them as historical Release entries.
func (s *Store) historyProjection(f ReleaseFilter, fetch int) ([]models.Release, int64, error) {
	type joined struct {
		models.ReleaseHistory
		TrackerName    string
		TagName        string
		Version        string
		URL            string
		Prerelease     bool
		RepublishCount int
	}

	q := s.db.Table("release_histories").
		Select("release_histories.*, releases.tracker_name, releases.tag_name, releases.version, releases.url, releases.prerelease, releases.republish_count").
		Joins("JOIN releases ON releases.id = release_histories.release_id")
	q = s.filterReleases(q, f, "releases.")

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: count history: %w", err)
	}

	var rows []joined
	if err := q.Order("release_histories.published_at DESC").Limit(fetch).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("store: list history: %w", err)
	}

	projected := make([]models.Release, 0, len(rows))
	for _, r := range rows {
		projected = append(projected, models.Release{
			ID:             r.ReleaseID,
			TrackerName:    r.TrackerName,
			TagName:        r.TagName,
			Name:           r.Name,
			Version:        r.Version,
			PublishedAt:    r.PublishedAt,
			URL:            r.URL,
			Prerelease:     r.Prerelease,
			Body:           r.Body,
			ChannelName:    r.ChannelName,
			CommitSHA:      r.CommitSHA,
			RepublishCount: r.RepublishCount,
			IsHistorical:   true,
			CreatedAt:      r.RecordedAt,
		})
	}
	return projected, total, nil
}

// filterReleases applies a ReleaseFilter to a query. prefix qualifies column
// names when the releases table is joined.
func (s *Store) filterReleases(q *gorm.DB, f ReleaseFilter, prefix string) *gorm.DB {
	if f.Tracker != "" {
		q = q.Where(prefix+"tracker_name = ?", f.Tracker)
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		q = q.Where(
			fmt.Sprintf("(%[1]stracker_name LIKE ? OR %[1]sname LIKE ? OR %[1]stag_name LIKE ? OR %[1]sversion LIKE ?)", prefix),
			pattern, pattern, pattern, pattern)
	}
	if f.Prerelease != nil {
		q = q.Where(prefix+"prerelease = ?", *f.Prerelease)
	}
	return q
}

// LatestReleases returns the newest n live releases across all trackers.
func (s *Store) LatestReleases(n int) ([]models.Release, error) {
	if n <= 0 {
		n = 5
	}
	var releases []models.Release
	if err := s.db.Order("published_at DESC").Limit(n).Find(&releases).Error; err != nil {
		return nil, fmt.Errorf("store: latest releases: %w", err)
	}
	return releases, nil
}

// LatestForTracker returns the newest release for a tracker honoring its
// enabled channel rules: per channel the newest matching release is found
// and the most recently published of those wins. With no enabled channels
// the newest release overall is returned.
func (s *Store) LatestForTracker(tracker models.Tracker) (*models.Release, error) {
	channels, err := models.ParseChannels(tracker.Channels)
	if err != nil {
		return nil, fmt.Errorf("store: latest for %s: %w", tracker.Name, err)
	}

	var releases []models.Release
	if err := s.db.Where("tracker_name = ?", tracker.Name).
		Order("published_at DESC").Limit(100).Find(&releases).Error; err != nil {
		return nil, fmt.Errorf("store: latest for %s: %w", tracker.Name, err)
	}
	if len(releases) == 0 {
		return nil, nil
	}

	enabled := make([]models.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Enabled {
			enabled = append(enabled, ch)
		}
	}
	if len(enabled) == 0 {
		return &releases[0], nil
	}

	var best *models.Release
	for _, ch := range enabled {
		for i := range releases {
			r := &releases[i]
			if !channel.Matches(ch, provider.Candidate{Tag: r.TagName, Prerelease: r.Prerelease}) {
				continue
			}
			if best == nil || r.PublishedAt.After(best.PublishedAt) {
				best = r
			}
			break
		}
	}
	return best, nil
}

// DeleteTrackerData removes a tracker's releases, history snapshots and
// status row. Used when a tracker is deleted.
func (s *Store) DeleteTrackerData(name string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("release_id IN (?)",
			tx.Model(&models.Release{}).Select("id").Where("tracker_name = ?", name),
		).Delete(&models.ReleaseHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tracker_name = ?", name).Delete(&models.Release{}).Error; err != nil {
			return err
		}
		return tx.Where("name = ?", name).Delete(&models.TrackerStatus{}).Error
	})
	if err != nil {
		return fmt.Errorf("store: delete tracker data for %s: %w", name, err)
	}
	return nil
}

// CountHistory returns the number of history rows for a (tracker, tag) pair.
func (s *Store) CountHistory(trackerName, tagName string) (int64, error) {
	var count int64
	err := s.db.Model(&models.ReleaseHistory{}).
		Joins("JOIN releases ON releases.id = release_histories.release_id").
		Where("releases.tracker_name = ? AND releases.tag_name = ?", trackerName, tagName).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("store: count history: %w", err)
	}
	return count, nil
}

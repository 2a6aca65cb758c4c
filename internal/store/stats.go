package store

import (
	"fmt"
	"time"

	"github.com/zulandar/signalbox/internal/models"
)

// ReleaseStats summarizes the release table for the stats endpoint.
type ReleaseStats struct {
	TotalTrackers    int64            `json:"total_trackers"`
	TotalReleases    int64            `json:"total_releases"` // live rows plus history snapshots
	RecentReleases   int64            `json:"recent_releases"`
	LatestUpdate     *time.Time       `json:"latest_update"`
	DailyStats       []DailyStat      `json:"daily_stats"`
	ChannelStats     map[string]int64 `json:"channel_stats"`
	ReleaseTypeStats map[string]int64 `json:"release_type_stats"`
}

// DailyStat is one day's per-channel publish count.
type DailyStat struct {
	Date     string           `json:"date"`
	Channels map[string]int64 `json:"channels"`
}

// statRow is the slice of a release row the aggregations need.
type statRow struct {
	PublishedAt time.Time
	ChannelName string
	Prerelease  bool
}

// Stats computes release statistics. History snapshots count alongside live
// rows everywhere except the recent-24h figure, which tracks first-seen
// times.
func (s *Store) Stats() (*ReleaseStats, error) {
	stats := &ReleaseStats{
		ChannelStats:     make(map[string]int64),
		ReleaseTypeStats: make(map[string]int64),
	}

	if err := s.db.Model(&models.TrackerStatus{}).Count(&stats.TotalTrackers).Error; err != nil {
		return nil, fmt.Errorf("store: stats: count trackers: %w", err)
	}

	var liveTotal, histTotal int64
	if err := s.db.Model(&models.Release{}).Count(&liveTotal).Error; err != nil {
		return nil, fmt.Errorf("store: stats: count releases: %w", err)
	}
	if err := s.db.Model(&models.ReleaseHistory{}).
		Joins("JOIN releases ON releases.id = release_histories.release_id").
		Count(&histTotal).Error; err != nil {
		return nil, fmt.Errorf("store: stats: count history: %w", err)
	}
	stats.TotalReleases = liveTotal + histTotal

	yesterday := time.Now().Add(-24 * time.Hour)
	if err := s.db.Model(&models.Release{}).
		Where("created_at > ?", yesterday).
		Count(&stats.RecentReleases).Error; err != nil {
		return nil, fmt.Errorf("store: stats: count recent: %w", err)
	}

	var latest models.Release
	err := s.db.Order("published_at DESC").First(&latest).Error
	if err == nil {
		stats.LatestUpdate = &latest.PublishedAt
	} else if !s.IsNotFound(err) {
		return nil, fmt.Errorf("store: stats: latest update: %w", err)
	}

	rows, err := s.statRows()
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		ch := channelOrDefault(r)
		stats.ChannelStats[ch]++
		if r.Prerelease {
			stats.ReleaseTypeStats["prerelease"]++
		} else {
			stats.ReleaseTypeStats["stable"]++
		}
	}
	stats.DailyStats = dailyBuckets(rows, time.Now())

	return stats, nil
}

// statRows loads the channel/prerelease/published tuples for live rows and
// history snapshots.
func (s *Store) statRows() ([]statRow, error) {
	var live []statRow
	if err := s.db.Model(&models.Release{}).
		Select("published_at, channel_name, prerelease").
		Find(&live).Error; err != nil {
		return nil, fmt.Errorf("store: stats: load releases: %w", err)
	}

	var hist []statRow
	if err := s.db.Table("release_histories").
		Select("release_histories.published_at, release_histories.channel_name, releases.prerelease").
		Joins("JOIN releases ON releases.id = release_histories.release_id").
		Find(&hist).Error; err != nil {
		return nil, fmt.Errorf("store: stats: load history: %w", err)
	}
	return append(live, hist...), nil
}

// dailyBuckets groups publishes by calendar date in now's location over the
// last seven days, including empty days so charts stay continuous.
func dailyBuckets(rows []statRow, now time.Time) []DailyStat {
	const days = 7
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	start := today.AddDate(0, 0, -(days - 1))

	buckets := make(map[string]map[string]int64, days)
	for d := 0; d < days; d++ {
		buckets[start.AddDate(0, 0, d).Format("2006-01-02")] = make(map[string]int64)
	}

	for _, r := range rows {
		day := r.PublishedAt.In(loc).Format("2006-01-02")
		channels, ok := buckets[day]
		if !ok {
			continue
		}
		channels[channelOrDefault(r)]++
	}

	daily := make([]DailyStat, 0, days)
	for d := 0; d < days; d++ {
		date := start.AddDate(0, 0, d).Format("2006-01-02")
		daily = append(daily, DailyStat{Date: date, Channels: buckets[date]})
	}
	return daily
}

// channelOrDefault falls back to a type-derived channel name for rows
// recorded before channels existed.
func channelOrDefault(r statRow) string {
	if r.ChannelName != "" {
		return r.ChannelName
	}
	if r.Prerelease {
		return models.ChannelPrerelease
	}
	return models.ChannelStable
}

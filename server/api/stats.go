package api

import (
	"sort"
	"time"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	LeaderboardModeDaily = "daily"
	LeaderboardModeTotal = "total"

	DefaultLeaderboardLimit = 20
	MaxLeaderboardLimit     = 50
)

// ViewResult reports whether a view event was counted and the stats row
// after the event.
type ViewResult struct {
	Counted bool
	Stats   model.UserStats
}

// RecordViewImpl counts a first view of a reel within a feed and advances
// the user's streak counters. Re-viewing an already-viewed reel changes
// nothing. The whole read-modify-write runs inside one transaction with the
// stats row locked, so two near-simultaneous views for the same user
// serialize instead of both computing from the same stale base.
func RecordViewImpl(db *gorm.DB, userId string, feedId string, reelId string, now time.Time) (*ViewResult, error) {
	if _, err := GetUserImpl(db, userId); err != nil {
		return nil, err
	}

	var placement model.FeedPlacement
	if db.Where("feed_id = ? AND reel_id = ?", feedId, reelId).First(&placement).RowsAffected == 0 {
		return nil, &model.NotInFeedError{FeedID: feedId, ReelID: reelId}
	}

	dayKey := model.DayKey(now)
	result := ViewResult{}

	err := db.Transaction(func(tx *gorm.DB) error {
		var stats model.UserStats
		lockResult := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userId).
			First(&stats)
		if errors.Is(lockResult.Error, gorm.ErrRecordNotFound) {
			stats = model.UserStats{UserID: userId, LastDayKey: dayKey}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&stats).Error; err != nil {
				return errors.Wrap(err, "fail to create user stats")
			}
			// Re-acquire under lock in case a concurrent view created the row.
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id = ?", userId).
				First(&stats).Error; err != nil {
				return errors.Wrap(err, "fail to lock user stats")
			}
		} else if lockResult.Error != nil {
			return errors.Wrap(lockResult.Error, "fail to lock user stats")
		}

		view := model.ReelView{
			UserID:   userId,
			ReelID:   reelId,
			FeedID:   feedId,
			DayKey:   dayKey,
			ViewedAt: now,
		}
		viewInsert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&view)
		if viewInsert.Error != nil {
			return errors.Wrap(viewInsert.Error, "fail to record view")
		}
		if viewInsert.RowsAffected == 0 {
			// First-view-only counting: this (user, reel) pair was already seen.
			result.Counted = false
			result.Stats = stats
			return nil
		}

		// The current streak is scoped to one feed, the daily streak to one
		// UTC calendar day.
		if stats.LastFeedID != nil && *stats.LastFeedID != feedId {
			stats.CurrentStreak = 0
		}
		if stats.LastDayKey != dayKey {
			stats.DailyStreak = 0
		}

		stats.CurrentStreak++
		stats.DailyStreak++
		stats.TotalCount++
		if stats.CurrentStreak > stats.BestStreak {
			stats.BestStreak = stats.CurrentStreak
		}
		stats.LastFeedID = &feedId
		stats.LastDayKey = dayKey

		if err := tx.Save(&stats).Error; err != nil {
			return errors.Wrap(err, "fail to update user stats")
		}

		result.Counted = true
		result.Stats = stats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetStatsByUserImpl returns the user's stats row, zero-valued when the user
// has not viewed anything yet.
func GetStatsByUserImpl(db *gorm.DB, userId string) (*model.UserStats, error) {
	var stats model.UserStats
	result := db.Where("user_id = ?", userId).First(&stats)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return &model.UserStats{UserID: userId}, nil
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "fail to load user stats")
	}
	return &stats, nil
}

// LeaderboardEntry is one ranked row with the user's display fields.
type LeaderboardEntry struct {
	UserID      string
	Name        string
	AvatarUrl   *string
	DailyStreak int
	TotalCount  int
	BestStreak  int
}

// LeaderboardImpl ranks users by daily streak or total view count. A daily
// streak whose last view day is not today reads as zero.
func LeaderboardImpl(db *gorm.DB, mode string, limit int, now time.Time) ([]LeaderboardEntry, error) {
	if mode != LeaderboardModeDaily && mode != LeaderboardModeTotal {
		return nil, &model.ValidationError{Reason: "unknown leaderboard mode: " + mode}
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	limit = utils.Min(limit, MaxLeaderboardLimit)

	orderBy := "total_count desc"
	if mode == LeaderboardModeDaily {
		orderBy = "daily_streak desc"
	}

	var stats []model.UserStats
	if err := db.Order(orderBy).Limit(limit).Find(&stats).Error; err != nil {
		return nil, errors.Wrap(err, "fail to load leaderboard stats")
	}

	today := model.DayKey(now)
	entries := make([]LeaderboardEntry, 0, len(stats))
	for _, row := range stats {
		entry := LeaderboardEntry{
			UserID:      row.UserID,
			Name:        "ReeLearner",
			DailyStreak: row.DailyStreak,
			TotalCount:  row.TotalCount,
			BestStreak:  row.BestStreak,
		}
		if row.LastDayKey != today {
			entry.DailyStreak = 0
		}
		var user model.User
		if db.Where("id = ?", row.UserID).First(&user).RowsAffected > 0 {
			entry.Name = user.Name
			entry.AvatarUrl = user.AvatarUrl
		}
		entries = append(entries, entry)
	}

	// Stale daily streaks zeroed above may have broken the DB ordering.
	sort.SliceStable(entries, func(i, j int) bool {
		if mode == LeaderboardModeDaily {
			return entries[i].DailyStreak > entries[j].DailyStreak
		}
		return entries[i].TotalCount > entries[j].TotalCount
	})

	return entries, nil
}

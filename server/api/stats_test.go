package api

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type statsFixture struct {
	db   *gorm.DB
	user *model.User
	feed *model.Feed
}

func newStatsFixture(t *testing.T) *statsFixture {
	t.Helper()
	db, _ := utils.CreateTempDB(t)
	user, err := UpsertUserImpl(db, "auth-stats", "s@t.at", "Streaker", nil)
	require.NoError(t, err)
	feed, err := CreateFeedImpl(db, user.Id, "chess", "", nil, nil)
	require.NoError(t, err)
	return &statsFixture{db: db, user: user, feed: feed}
}

func (f *statsFixture) placeReel(t *testing.T, feedId string, position float64) *model.Reel {
	t.Helper()
	return placeReel(t, f.db, feedId, fmt.Sprintf("https://cdn/%s-%f.mp4", feedId, position), position)
}

func TestRecordViewImpl(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("first views advance every counter", func(t *testing.T) {
		f := newStatsFixture(t)
		first := f.placeReel(t, f.feed.Id, 1)
		second := f.placeReel(t, f.feed.Id, 2)

		result, err := RecordViewImpl(f.db, f.user.Id, f.feed.Id, first.Id, day1)
		require.NoError(t, err)
		assert.True(t, result.Counted)
		assert.Equal(t, 1, result.Stats.CurrentStreak)
		assert.Equal(t, 1, result.Stats.DailyStreak)
		assert.Equal(t, 1, result.Stats.BestStreak)
		assert.Equal(t, 1, result.Stats.TotalCount)

		result, err = RecordViewImpl(f.db, f.user.Id, f.feed.Id, second.Id, day1)
		require.NoError(t, err)
		assert.True(t, result.Counted)
		assert.Equal(t, 2, result.Stats.CurrentStreak)
		assert.Equal(t, 2, result.Stats.DailyStreak)
		assert.Equal(t, 2, result.Stats.BestStreak)
		assert.Equal(t, 2, result.Stats.TotalCount)
	})

	t.Run("re-viewing the same reel is a no-op", func(t *testing.T) {
		f := newStatsFixture(t)
		reel := f.placeReel(t, f.feed.Id, 1)

		_, err := RecordViewImpl(f.db, f.user.Id, f.feed.Id, reel.Id, day1)
		require.NoError(t, err)

		result, err := RecordViewImpl(f.db, f.user.Id, f.feed.Id, reel.Id, day1)
		require.NoError(t, err)
		assert.False(t, result.Counted)
		assert.Equal(t, 1, result.Stats.CurrentStreak)
		assert.Equal(t, 1, result.Stats.TotalCount)
	})

	t.Run("switching feeds resets the current streak but not the day streak", func(t *testing.T) {
		f := newStatsFixture(t)
		other, err := CreateFeedImpl(f.db, f.user.Id, "openings", "", nil, nil)
		require.NoError(t, err)

		a := f.placeReel(t, f.feed.Id, 1)
		b := f.placeReel(t, f.feed.Id, 2)
		c := f.placeReel(t, other.Id, 1)

		_, err = RecordViewImpl(f.db, f.user.Id, f.feed.Id, a.Id, day1)
		require.NoError(t, err)
		_, err = RecordViewImpl(f.db, f.user.Id, f.feed.Id, b.Id, day1)
		require.NoError(t, err)

		result, err := RecordViewImpl(f.db, f.user.Id, other.Id, c.Id, day1)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Stats.CurrentStreak)
		assert.Equal(t, 3, result.Stats.DailyStreak)
		// Best streak keeps the old high-water mark.
		assert.Equal(t, 2, result.Stats.BestStreak)
		assert.Equal(t, 3, result.Stats.TotalCount)
	})

	t.Run("a new day resets the daily streak but not the feed streak", func(t *testing.T) {
		f := newStatsFixture(t)
		a := f.placeReel(t, f.feed.Id, 1)
		b := f.placeReel(t, f.feed.Id, 2)

		_, err := RecordViewImpl(f.db, f.user.Id, f.feed.Id, a.Id, day1)
		require.NoError(t, err)

		result, err := RecordViewImpl(f.db, f.user.Id, f.feed.Id, b.Id, day2)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Stats.CurrentStreak)
		assert.Equal(t, 1, result.Stats.DailyStreak)
		assert.Equal(t, model.DayKey(day2), result.Stats.LastDayKey)
	})

	t.Run("simultaneous views both land", func(t *testing.T) {
		f := newStatsFixture(t)
		first := f.placeReel(t, f.feed.Id, 1)
		second := f.placeReel(t, f.feed.Id, 2)

		var wg sync.WaitGroup
		viewErrs := make([]error, 2)
		for i, reel := range []*model.Reel{first, second} {
			wg.Add(1)
			go func(slot int, reelId string) {
				defer wg.Done()
				result, err := RecordViewImpl(f.db, f.user.Id, f.feed.Id, reelId, day1)
				if err == nil && !result.Counted {
					err = fmt.Errorf("view of %s was not counted", reelId)
				}
				viewErrs[slot] = err
			}(i, reel.Id)
		}
		wg.Wait()
		for _, err := range viewErrs {
			require.NoError(t, err)
		}

		// The row lock serializes the two updates, neither increment is lost.
		stats, err := GetStatsByUserImpl(f.db, f.user.Id)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalCount)
		assert.Equal(t, 2, stats.CurrentStreak)
		assert.Equal(t, 2, stats.BestStreak)
	})

	t.Run("rejects a reel not placed in the feed", func(t *testing.T) {
		f := newStatsFixture(t)
		elsewhere, err := CreateFeedImpl(f.db, f.user.Id, "elsewhere", "", nil, nil)
		require.NoError(t, err)
		strayReel := f.placeReel(t, elsewhere.Id, 1)

		_, err = RecordViewImpl(f.db, f.user.Id, f.feed.Id, strayReel.Id, day1)
		require.Error(t, err)
		assert.True(t, model.IsNotInFeed(err))
	})

	t.Run("rejects an unknown user", func(t *testing.T) {
		f := newStatsFixture(t)
		reel := f.placeReel(t, f.feed.Id, 1)

		_, err := RecordViewImpl(f.db, "no-such-user", f.feed.Id, reel.Id, day1)
		require.Error(t, err)
		assert.True(t, model.IsNotFound(err))
	})
}

func TestGetStatsByUserImpl(t *testing.T) {
	f := newStatsFixture(t)

	t.Run("zero-valued before any view", func(t *testing.T) {
		stats, err := GetStatsByUserImpl(f.db, f.user.Id)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalCount)
		assert.Zero(t, stats.CurrentStreak)
	})

	t.Run("reflects recorded views", func(t *testing.T) {
		reel := f.placeReel(t, f.feed.Id, 1)
		_, err := RecordViewImpl(f.db, f.user.Id, f.feed.Id, reel.Id, time.Now())
		require.NoError(t, err)

		stats, err := GetStatsByUserImpl(f.db, f.user.Id)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalCount)
	})
}

func TestLeaderboardImpl(t *testing.T) {
	now := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	today := model.DayKey(now)
	yesterday := model.DayKey(now.AddDate(0, 0, -1))

	seed := func(t *testing.T, db *gorm.DB) {
		t.Helper()
		avatarUrl := "https://cdn/ava.jpg"
		users := []model.User{
			{Id: "u-fresh", AuthId: "a-fresh", Name: "Fresh", AvatarUrl: &avatarUrl},
			{Id: "u-stale", AuthId: "a-stale", Name: "Stale"},
			{Id: "u-heavy", AuthId: "a-heavy", Name: "Heavy"},
		}
		for _, user := range users {
			require.NoError(t, db.Create(&user).Error)
		}
		rows := []model.UserStats{
			{UserID: "u-fresh", DailyStreak: 3, TotalCount: 10, LastDayKey: today},
			{UserID: "u-stale", DailyStreak: 9, TotalCount: 20, LastDayKey: yesterday},
			{UserID: "u-heavy", DailyStreak: 1, TotalCount: 50, LastDayKey: today},
		}
		for _, row := range rows {
			require.NoError(t, db.Create(&row).Error)
		}
		// A stats row whose user record disappeared still ranks, with a
		// fallback display name.
		require.NoError(t, db.Create(&model.UserStats{
			UserID: "u-ghost", DailyStreak: 2, TotalCount: 5, LastDayKey: today,
		}).Error)
	}

	t.Run("daily mode zeroes stale streaks and re-sorts", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		seed(t, db)

		entries, err := LeaderboardImpl(db, LeaderboardModeDaily, 10, now)
		require.NoError(t, err)
		require.Len(t, entries, 4)

		assert.Equal(t, "u-fresh", entries[0].UserID)
		assert.Equal(t, 3, entries[0].DailyStreak)
		assert.Equal(t, "Fresh", entries[0].Name)
		require.NotNil(t, entries[0].AvatarUrl)

		assert.Equal(t, "u-ghost", entries[1].UserID)
		assert.Equal(t, "ReeLearner", entries[1].Name)

		// Yesterday's streak reads as zero and sinks to the bottom.
		last := entries[len(entries)-1]
		assert.Equal(t, "u-stale", last.UserID)
		assert.Zero(t, last.DailyStreak)
	})

	t.Run("total mode ranks by lifetime count", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		seed(t, db)

		entries, err := LeaderboardImpl(db, LeaderboardModeTotal, 10, now)
		require.NoError(t, err)
		require.Len(t, entries, 4)
		assert.Equal(t, "u-heavy", entries[0].UserID)
		assert.Equal(t, "u-stale", entries[1].UserID)
	})

	t.Run("limit is capped", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		seed(t, db)

		entries, err := LeaderboardImpl(db, LeaderboardModeTotal, 2, now)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("rejects an unknown mode", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		_, err := LeaderboardImpl(db, "hourly", 10, now)
		require.Error(t, err)
		assert.True(t, model.IsValidation(err))
	})
}

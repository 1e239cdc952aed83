package model

import "time"

const DayKeyFormat = "2006-01-02"

// DayKey buckets a timestamp into a UTC calendar day, used for daily streaks
// and leaderboard day scoping.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyFormat)
}

/*

UserStats is the gamified view-counter row, one per user.

UserID: primary key
CurrentStreak: consecutive first-views inside the same feed, resets when the
	user views a reel in a different feed
BestStreak: high-water mark of CurrentStreak
DailyStreak: consecutive first-views sharing the same UTC day key
TotalCount: lifetime first-view count
LastFeedID: feed of the most recent counted view
LastDayKey: UTC day key of the most recent counted view

Mutated only by view recording, under a per-user row lock.

*/
type UserStats struct {
	UserID        string `gorm:"primaryKey"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CurrentStreak int
	BestStreak    int
	DailyStreak   int
	TotalCount    int `gorm:"index"`
	LastFeedID    *string
	LastDayKey    string
}

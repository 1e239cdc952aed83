package model

import "time"

/*

ReelView is an append-only fact, one row per (user, reel) first-view event.

UserID: user id, composite primary key
ReelID: reel id, composite primary key
FeedID: feed the reel was viewed through
DayKey: UTC day bucket, drives daily-streak and leaderboard day scoping
ViewedAt: event time

Its existence is what makes re-views no-ops for every streak counter.

*/
type ReelView struct {
	UserID   string `gorm:"primaryKey"`
	ReelID   string `gorm:"primaryKey"`
	FeedID   string
	DayKey   string
	ViewedAt time.Time
}

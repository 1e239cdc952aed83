package model

import "time"

/*

ReelLike is a presence-toggle relation of a user liking a reel.

ReelID: reel id, composite primary key
UserID: user id, composite primary key
CreatedAt: time when relation is created

Likes reference the canonical reel, not a placement, so they survive a reel
being removed from one feed while still placed in another.

*/
type ReelLike struct {
	ReelID    string `gorm:"primaryKey"`
	UserID    string `gorm:"primaryKey"`
	CreatedAt time.Time
}

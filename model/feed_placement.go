package model

import "time"

// PlacementStatus is the per-feed state of a placed reel.
type PlacementStatus string

const (
	PlacementStatusPending PlacementStatus = "pending"
	PlacementStatusReady   PlacementStatus = "ready"
	PlacementStatusFailed  PlacementStatus = "failed"
)

/*

FeedPlacement links a reel into a specific feed at a specific position.

FeedID: feed id, composite primary key
ReelID: reel id, composite primary key
CreatedAt/UpdatedAt: relation timestamps

Position: real-number sort key defining the total order within the feed.
	Write-once: no operation ever moves an already-placed reel.
Status: "pending" while the reel has no playable url yet, "ready" otherwise,
	"failed" when a generated reel could not be produced

A (FeedID, ReelID) pair is inserted at most once, re-adding is a no-op. The
assembler is the sole writer of this table.

*/
type FeedPlacement struct {
	FeedID    string `gorm:"primaryKey;index:idx_placements_feed_position"`
	ReelID    string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Position  float64 `gorm:"index:idx_placements_feed_position"`
	Status    PlacementStatus
}

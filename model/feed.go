package model

import (
	"strings"
	"time"
)

// FeedStatus is the lifecycle state of a feed.
type FeedStatus string

const (
	// FeedStatusPending: created, or the last fetch cycle yielded nothing.
	FeedStatusPending FeedStatus = "pending"
	// FeedStatusCurating: a fetch cycle is in flight.
	FeedStatusCurating FeedStatus = "curating"
	// FeedStatusReady: at least one placement landed.
	FeedStatusReady FeedStatus = "ready"
	// FeedStatusArchived: soft-retired by the owner.
	FeedStatusArchived FeedStatus = "archived"
)

// ValidFeedStatus reports whether s is one of the known feed states.
func ValidFeedStatus(s FeedStatus) bool {
	switch s {
	case FeedStatusPending, FeedStatusCurating, FeedStatusReady, FeedStatusArchived:
		return true
	}
	return false
}

/*

Feed is a prompt-driven column of reels owned by exactly one user.

Id: primary key
CreatedAt/UpdatedAt: entity timestamps
UserID: owner, never transferred
Prompt: the topic prompt this feed was created from
Topic/Description: display fields
Tag: tags transformed into serialized string separated by ","

Status: lifecycle, pending -> curating -> ready, see FeedStatus
LastSeenReelID/LastSeenIndex: owner's consumption progress in the ordered
	placement sequence, last-write-wins, updated only through progress recording

*/
type Feed struct {
	Id             string `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	UserID         string `gorm:"index:idx_feeds_user_status"`
	Prompt         string
	Topic          string
	Description    *string
	Tag            string
	Status         FeedStatus `gorm:"index:idx_feeds_user_status"`
	LastSeenReelID *string
	LastSeenIndex  *int
}

// Tags splits the serialized tag column, empty column yields nil.
func (f *Feed) Tags() []string {
	if f.Tag == "" {
		return nil
	}
	return strings.Split(f.Tag, ",")
}

package assembler

import (
	"time"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/server/api"
	"github.com/BagetTeam/ReeLearners/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ProgressTracker records where the viewer is in a feed and decides when the
// assembler should be asked for more content.
type ProgressTracker struct {
	DB     *gorm.DB
	Status *utils.RedisStatusStore
}

// ProgressResult tells the consuming client how much loaded content is left
// past the viewer and whether it should trigger another fetch cycle.
type ProgressResult struct {
	Feed           *model.Feed
	RemainingAhead int
	ShouldHydrate  bool
}

// RecordProgress is a last-write-wins update of the feed's last-seen marker.
// The referenced reel must actually be placed in the feed.
func (p *ProgressTracker) RecordProgress(feedId string, lastSeenIndex *int, lastSeenReelId *string) (*ProgressResult, error) {
	feed, err := api.GetFeedImpl(p.DB, feedId)
	if err != nil {
		return nil, err
	}

	if lastSeenReelId != nil {
		var placement model.FeedPlacement
		if p.DB.Where("feed_id = ? AND reel_id = ?", feedId, *lastSeenReelId).First(&placement).RowsAffected == 0 {
			return nil, &model.NotInFeedError{FeedID: feedId, ReelID: *lastSeenReelId}
		}
	}

	feed.LastSeenIndex = lastSeenIndex
	feed.LastSeenReelID = lastSeenReelId
	feed.UpdatedAt = time.Now()
	if err := p.DB.Save(feed).Error; err != nil {
		return nil, errors.Wrap(err, "fail to record feed progress")
	}

	remaining, err := p.remainingAhead(feedId, lastSeenIndex)
	if err != nil {
		return nil, err
	}

	return &ProgressResult{
		Feed:           feed,
		RemainingAhead: remaining,
		ShouldHydrate:  remaining == 0,
	}, nil
}

// remainingAhead counts ready placements past the viewer's index. Pending
// placements are still waiting on their video and cannot be played, so they
// don't postpone hydration. The index walks the full placement order.
func (p *ProgressTracker) remainingAhead(feedId string, lastSeenIndex *int) (int, error) {
	var statuses []model.PlacementStatus
	if err := p.DB.Model(&model.FeedPlacement{}).
		Where("feed_id = ?", feedId).
		Order("position asc").
		Pluck("status", &statuses).Error; err != nil {
		return 0, errors.Wrap(err, "fail to load placements")
	}

	start := 0
	if lastSeenIndex != nil {
		start = *lastSeenIndex + 1
	}
	if start > len(statuses) {
		start = len(statuses)
	}

	remaining := 0
	for _, status := range statuses[start:] {
		if status == model.PlacementStatusReady {
			remaining++
		}
	}
	return remaining, nil
}

// TryBeginHydration atomically claims the feed's in-flight hydration flag.
// Callers that lose the claim must not launch a fetch cycle.
func (p *ProgressTracker) TryBeginHydration(feedId string) (bool, error) {
	if p.Status == nil {
		// No redis configured (tests, single-node dev): always allow.
		return true, nil
	}
	return p.Status.TryBeginHydration(feedId)
}

// EndHydration releases the feed's in-flight hydration flag.
func (p *ProgressTracker) EndHydration(feedId string) {
	if p.Status == nil {
		return
	}
	if err := p.Status.EndHydration(feedId); err != nil {
		// Flag has a TTL, a failed release only delays the next cycle.
		return
	}
}

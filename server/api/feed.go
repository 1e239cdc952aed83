package api

import (
	"strings"
	"time"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CreateFeedImpl creates a pending feed for a prompt, owned by exactly one
// user.
func CreateFeedImpl(db *gorm.DB, userId string, prompt string, topic string, description *string, tags []string) (*model.Feed, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, &model.ValidationError{Reason: "prompt cannot be empty"}
	}

	var user model.User
	if db.Where("id = ?", userId).First(&user).RowsAffected == 0 {
		return nil, &model.NotFoundError{Kind: "user", Id: userId}
	}

	if topic == "" {
		topic = prompt
	}

	feed := model.Feed{
		Id:          uuid.New().String(),
		UserID:      userId,
		Prompt:      prompt,
		Topic:       topic,
		Description: description,
		// transform tags into serialized string separated by ","
		Tag:    strings.Join(tags, ","),
		Status: model.FeedStatusPending,
	}
	if err := db.Create(&feed).Error; err != nil {
		return nil, errors.Wrap(err, "fail to create feed")
	}
	return &feed, nil
}

// GetFeedImpl loads a feed by id.
func GetFeedImpl(db *gorm.DB, feedId string) (*model.Feed, error) {
	var feed model.Feed
	result := db.Where("id = ?", feedId).First(&feed)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Kind: "feed", Id: feedId}
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "fail to load feed")
	}
	return &feed, nil
}

// ListFeedsByUserImpl returns the user's feeds, most recently updated first,
// optionally narrowed to one status.
func ListFeedsByUserImpl(db *gorm.DB, userId string, status *model.FeedStatus) ([]model.Feed, error) {
	query := db.Where("user_id = ?", userId)
	if status != nil {
		if !model.ValidFeedStatus(*status) {
			return nil, &model.ValidationError{Reason: "unknown feed status: " + string(*status)}
		}
		query = query.Where("status = ?", *status)
	}

	var feeds []model.Feed
	if err := query.Order("updated_at desc").Find(&feeds).Error; err != nil {
		return nil, errors.Wrap(err, "fail to list feeds")
	}
	return feeds, nil
}

// UpdateFeedStatusImpl sets the feed lifecycle state.
func UpdateFeedStatusImpl(db *gorm.DB, feedId string, status model.FeedStatus) (*model.Feed, error) {
	if !model.ValidFeedStatus(status) {
		return nil, &model.ValidationError{Reason: "unknown feed status: " + string(status)}
	}

	feed, err := GetFeedImpl(db, feedId)
	if err != nil {
		return nil, err
	}

	feed.Status = status
	feed.UpdatedAt = time.Now()
	if err := db.Save(feed).Error; err != nil {
		return nil, errors.Wrap(err, "fail to update feed status")
	}
	return feed, nil
}

// DeleteFeedImpl removes the feed and, transactionally, all its placements.
// Reels left with no remaining placement and no recorded view are orphans
// and are swept together with their likes and comments.
func DeleteFeedImpl(db *gorm.DB, feedId string) error {
	if _, err := GetFeedImpl(db, feedId); err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var placements []model.FeedPlacement
		if err := tx.Where("feed_id = ?", feedId).Find(&placements).Error; err != nil {
			return errors.Wrap(err, "fail to load placements for delete")
		}

		if err := tx.Where("feed_id = ?", feedId).Delete(&model.FeedPlacement{}).Error; err != nil {
			return errors.Wrap(err, "fail to delete placements")
		}
		if err := tx.Where("id = ?", feedId).Delete(&model.Feed{}).Error; err != nil {
			return errors.Wrap(err, "fail to delete feed")
		}

		for _, placement := range placements {
			orphaned, err := isReelOrphaned(tx, placement.ReelID)
			if err != nil {
				return err
			}
			if !orphaned {
				continue
			}
			if err := tx.Where("reel_id = ?", placement.ReelID).Delete(&model.ReelLike{}).Error; err != nil {
				return errors.Wrap(err, "fail to delete orphaned reel likes")
			}
			if err := tx.Where("reel_id = ?", placement.ReelID).Delete(&model.ReelComment{}).Error; err != nil {
				return errors.Wrap(err, "fail to delete orphaned reel comments")
			}
			if err := tx.Where("id = ?", placement.ReelID).Delete(&model.Reel{}).Error; err != nil {
				return errors.Wrap(err, "fail to delete orphaned reel")
			}
		}
		return nil
	})
}

func isReelOrphaned(tx *gorm.DB, reelId string) (bool, error) {
	var placementCount int64
	if err := tx.Model(&model.FeedPlacement{}).Where("reel_id = ?", reelId).Count(&placementCount).Error; err != nil {
		return false, errors.Wrap(err, "fail to count remaining placements")
	}
	if placementCount > 0 {
		return false, nil
	}

	var viewCount int64
	if err := tx.Model(&model.ReelView{}).Where("reel_id = ?", reelId).Count(&viewCount).Error; err != nil {
		return false, errors.Wrap(err, "fail to count reel views")
	}
	return viewCount == 0, nil
}

// PlacedReel is the ordered reel + placement view handed to the consuming
// client.
type PlacedReel struct {
	Reel     model.Reel
	FeedID   string
	Position float64
	Status   model.PlacementStatus
}

// ListReelsForFeedImpl reads the feed's placements in ascending position
// order and resolves each to its canonical reel.
func ListReelsForFeedImpl(db *gorm.DB, feedId string, status *model.PlacementStatus, limit int) ([]PlacedReel, error) {
	if _, err := GetFeedImpl(db, feedId); err != nil {
		return nil, err
	}

	query := db.Where("feed_id = ?", feedId)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	query = query.Order("position asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var placements []model.FeedPlacement
	if err := query.Find(&placements).Error; err != nil {
		return nil, errors.Wrap(err, "fail to list placements")
	}
	if len(placements) == 0 {
		return []PlacedReel{}, nil
	}

	reelIds := make([]string, 0, len(placements))
	for _, placement := range placements {
		reelIds = append(reelIds, placement.ReelID)
	}
	var reels []model.Reel
	if err := db.Where("id IN ?", reelIds).Find(&reels).Error; err != nil {
		return nil, errors.Wrap(err, "fail to load placed reels")
	}
	reelById := make(map[string]model.Reel, len(reels))
	for _, reel := range reels {
		reelById[reel.Id] = reel
	}

	placed := make([]PlacedReel, 0, len(placements))
	for _, placement := range placements {
		reel, ok := reelById[placement.ReelID]
		if !ok {
			continue
		}
		placed = append(placed, PlacedReel{
			Reel:     reel,
			FeedID:   placement.FeedID,
			Position: placement.Position,
			Status:   placement.Status,
		})
	}
	return placed, nil
}

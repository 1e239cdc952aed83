package api

import (
	"time"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/provider"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertReelImpl resolves a candidate to a canonical reel: lookup by video
// url first, then by source reference, fill-merging previously-empty fields
// on a hit and inserting otherwise. Concurrent upserts for the same dedup key
// are serialized by the unique indexes: the losing inserter observes a
// conflict, re-reads the winner's row and proceeds to fill-merge.
func UpsertReelImpl(tx *gorm.DB, candidate provider.Candidate) (*model.Reel, error) {
	reel, err := findReelByDedupKeys(tx, candidate)
	if err != nil {
		return nil, err
	}
	if reel != nil {
		return fillMergeReel(tx, reel, candidate)
	}

	metadata, err := candidate.Metadata.ToJSON()
	if err != nil {
		return nil, errors.Wrap(err, "fail to encode reel metadata")
	}

	fresh := model.Reel{
		Id:         uuid.New().String(),
		SourceType: candidate.SourceType,
		Metadata:   metadata,
	}
	if candidate.VideoUrl != "" {
		fresh.VideoUrl = &candidate.VideoUrl
	}
	if candidate.SourceReference != "" {
		fresh.SourceReference = &candidate.SourceReference
	}
	if candidate.Title != "" {
		fresh.Title = &candidate.Title
	}
	if candidate.Description != "" {
		fresh.Description = &candidate.Description
	}
	if candidate.ThumbnailUrl != "" {
		fresh.ThumbnailUrl = &candidate.ThumbnailUrl
	}
	if candidate.DurationSeconds > 0 {
		fresh.DurationSeconds = &candidate.DurationSeconds
	}

	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "fail to insert reel")
	}
	if result.RowsAffected == 0 {
		// Lost the dedup race, the other writer's row is the canonical one.
		reel, err = findReelByDedupKeys(tx, candidate)
		if err != nil {
			return nil, err
		}
		if reel == nil {
			return nil, errors.New("reel insert conflicted but no existing row found")
		}
		return fillMergeReel(tx, reel, candidate)
	}
	return &fresh, nil
}

func findReelByDedupKeys(tx *gorm.DB, candidate provider.Candidate) (*model.Reel, error) {
	var reel model.Reel

	if candidate.VideoUrl != "" {
		result := tx.Where("video_url = ?", candidate.VideoUrl).First(&reel)
		if result.Error == nil {
			return &reel, nil
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(result.Error, "fail to look up reel by video url")
		}
	}

	if candidate.SourceReference != "" {
		result := tx.Where("source_reference = ?", candidate.SourceReference).First(&reel)
		if result.Error == nil {
			return &reel, nil
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(result.Error, "fail to look up reel by source reference")
		}
	}

	return nil, nil
}

// fillMergeReel sets only fields that are still empty on the existing reel.
// Already-set fields are never overwritten.
func fillMergeReel(tx *gorm.DB, reel *model.Reel, candidate provider.Candidate) (*model.Reel, error) {
	changed := false

	if reel.VideoUrl == nil && candidate.VideoUrl != "" {
		reel.VideoUrl = &candidate.VideoUrl
		changed = true
	}
	if reel.Title == nil && candidate.Title != "" {
		reel.Title = &candidate.Title
		changed = true
	}
	if reel.Description == nil && candidate.Description != "" {
		reel.Description = &candidate.Description
		changed = true
	}
	if reel.ThumbnailUrl == nil && candidate.ThumbnailUrl != "" {
		reel.ThumbnailUrl = &candidate.ThumbnailUrl
		changed = true
	}
	if reel.DurationSeconds == nil && candidate.DurationSeconds > 0 {
		reel.DurationSeconds = &candidate.DurationSeconds
		changed = true
	}
	if len(reel.Metadata) == 0 {
		metadata, err := candidate.Metadata.ToJSON()
		if err != nil {
			return nil, errors.Wrap(err, "fail to encode reel metadata")
		}
		if string(metadata) != "{}" {
			reel.Metadata = metadata
			changed = true
		}
	}

	if !changed {
		return reel, nil
	}
	if err := tx.Save(reel).Error; err != nil {
		return nil, errors.Wrap(err, "fail to fill-merge reel")
	}
	return reel, nil
}

// GetReelImpl loads a reel by id.
func GetReelImpl(db *gorm.DB, reelId string) (*model.Reel, error) {
	var reel model.Reel
	result := db.Where("id = ?", reelId).First(&reel)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Kind: "reel", Id: reelId}
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "fail to load reel")
	}
	return &reel, nil
}

// ReelPatch is an explicit post-hoc edit. Nil fields keep their current
// value, which is how the generated pipeline backfills a pending reel once
// rendering finishes.
type ReelPatch struct {
	VideoUrl        *string
	ThumbnailUrl    *string
	Title           *string
	Description     *string
	DurationSeconds *int
	Metadata        *model.ReelMetadata
}

// PatchReelImpl applies a nil-preserving update to a reel, and flips every
// pending placement of the reel to ready once it gains a video url.
func PatchReelImpl(db *gorm.DB, reelId string, patch ReelPatch) (*model.Reel, error) {
	reel, err := GetReelImpl(db, reelId)
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		hadVideoUrl := reel.VideoUrl != nil

		if patch.VideoUrl != nil {
			reel.VideoUrl = patch.VideoUrl
		}
		if patch.ThumbnailUrl != nil {
			reel.ThumbnailUrl = patch.ThumbnailUrl
		}
		if patch.Title != nil {
			reel.Title = patch.Title
		}
		if patch.Description != nil {
			reel.Description = patch.Description
		}
		if patch.DurationSeconds != nil {
			reel.DurationSeconds = patch.DurationSeconds
		}
		if patch.Metadata != nil {
			metadata, err := patch.Metadata.ToJSON()
			if err != nil {
				return errors.Wrap(err, "fail to encode reel metadata")
			}
			reel.Metadata = datatypes.JSON(metadata)
		}
		if err := tx.Save(reel).Error; err != nil {
			return errors.Wrap(err, "fail to patch reel")
		}

		if !hadVideoUrl && reel.VideoUrl != nil {
			result := tx.Model(&model.FeedPlacement{}).
				Where("reel_id = ? AND status = ?", reelId, model.PlacementStatusPending).
				Updates(map[string]interface{}{"status": model.PlacementStatusReady, "updated_at": time.Now()})
			if result.Error != nil {
				return errors.Wrap(result.Error, "fail to mark pending placements ready")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reel, nil
}

package provider_instances

import (
	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/provider"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// InternalCatalogAdapter surfaces reels already sitting in the canonical
// store whose title or description matches the prompt. It never touches the
// network. Re-emitting an existing reel is safe: the assembler dedups on the
// video url and only creates the new placement.
type InternalCatalogAdapter struct {
	DB *gorm.DB
}

func (a InternalCatalogAdapter) Name() string {
	return "internal_catalog"
}

func (a InternalCatalogAdapter) FetchCandidates(prompt string, limit int) ([]provider.Candidate, error) {
	var reels []model.Reel
	pattern := "%" + prompt + "%"
	result := a.DB.
		Where("video_url IS NOT NULL AND (title ILIKE ? OR description ILIKE ?)", pattern, pattern).
		Order("updated_at desc").
		Limit(limit).
		Find(&reels)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "fail to query internal catalog")
	}

	candidates := []provider.Candidate{}
	for _, reel := range reels {
		if reel.VideoUrl == nil {
			continue
		}
		candidate := provider.Candidate{
			VideoUrl:   *reel.VideoUrl,
			SourceType: model.SourceTypeInternal,
		}
		if reel.SourceReference != nil {
			candidate.SourceReference = *reel.SourceReference
		}
		if reel.Title != nil {
			candidate.Title = *reel.Title
		}
		if reel.Description != nil {
			candidate.Description = *reel.Description
		}
		if reel.ThumbnailUrl != nil {
			candidate.ThumbnailUrl = *reel.ThumbnailUrl
		}
		if reel.DurationSeconds != nil {
			candidate.DurationSeconds = *reel.DurationSeconds
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

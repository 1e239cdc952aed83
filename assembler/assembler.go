package assembler

import (
	"sync"
	"time"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/provider"
	"github.com/BagetTeam/ReeLearners/server/api"
	. "github.com/BagetTeam/ReeLearners/utils/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedAssembler drives fetch cycles: it fans a prompt out to the configured
// source adapters, merges whatever comes back into the reel store and the
// feed's placement sequence, and settles the feed status.
type FeedAssembler struct {
	DB       *gorm.DB
	Adapters []provider.SourceAdapter

	// Default per-provider candidate budget when the caller does not pass one.
	FetchLimit int
}

// NewFeedAssembler builds an assembler over the given adapters, in priority
// order.
func NewFeedAssembler(db *gorm.DB, fetchLimit int, adapters ...provider.SourceAdapter) *FeedAssembler {
	return &FeedAssembler{
		DB:         db,
		Adapters:   adapters,
		FetchLimit: fetchLimit,
	}
}

// FetchCycleResult reports how many new placements one cycle created.
type FetchCycleResult struct {
	Inserted int
}

type adapterOutcome struct {
	candidates []provider.Candidate
	err        error
}

// RunFetchCycle runs one full fetch cycle for a feed:
//
// 1. mark the feed curating
// 2. invoke every adapter concurrently, each under its own timeout budget;
//    a failing provider is logged and skipped, never fatal for the cycle
// 3. merge candidates in adapter priority order: upsert the canonical reel,
//    then insert a placement unless the (feed, reel) pair is already placed
// 4. feed goes ready when the cycle inserted anything, pending otherwise
//
// Re-running the cycle with the same prompt is a no-op for everything already
// placed and only contributes genuinely new candidates.
func (f *FeedAssembler) RunFetchCycle(feedId string, prompt string, limit int) (*FetchCycleResult, error) {
	if len(f.Adapters) == 0 {
		return nil, &model.ConfigurationError{Missing: "at least one source adapter"}
	}
	if limit <= 0 {
		limit = f.FetchLimit
	}

	feed, err := api.GetFeedImpl(f.DB, feedId)
	if err != nil {
		return nil, err
	}

	if _, err := api.UpdateFeedStatusImpl(f.DB, feedId, model.FeedStatusCurating); err != nil {
		return nil, err
	}

	outcomes := f.fetchFromAllAdapters(prompt, limit)

	allocator, positions, err := f.loadAllocator(feedId)
	if err != nil {
		return nil, err
	}

	// A cycle where literally nothing is configured cannot ever make
	// progress and fails outright instead of quietly yielding zero.
	misconfigured := 0
	for _, outcome := range outcomes {
		if model.IsConfigurationError(outcome.err) {
			misconfigured++
		}
	}
	if misconfigured == len(f.Adapters) {
		if _, err := api.UpdateFeedStatusImpl(f.DB, feedId, model.FeedStatusPending); err != nil {
			return nil, err
		}
		return nil, &model.ConfigurationError{Missing: "every source adapter is unconfigured"}
	}

	inserted := 0
	for idx, adapter := range f.Adapters {
		outcome := outcomes[idx]
		if outcome.err != nil {
			// Partial-provider-failure tolerance: one broken provider must not
			// block the others from contributing.
			Log.Errorf("provider %s contributed nothing to feed %s: %s", adapter.Name(), feedId, outcome.err)
			continue
		}

		if viewerAware(adapter) {
			f.openViewerWindow(allocator, feed, positions)
		} else {
			allocator.CloseWindow()
		}

		for _, candidate := range outcome.candidates {
			placed, err := f.mergeCandidate(feedId, candidate, allocator, viewerAware(adapter))
			if err != nil {
				Log.Errorf("fail to merge candidate %s into feed %s: %s", candidate.VideoUrl, feedId, err)
				continue
			}
			if placed {
				inserted++
			}
		}
	}

	finalStatus := model.FeedStatusPending
	if inserted > 0 {
		finalStatus = model.FeedStatusReady
	}
	if _, err := api.UpdateFeedStatusImpl(f.DB, feedId, finalStatus); err != nil {
		return nil, err
	}

	Log.Infof("fetch cycle for feed %s inserted %d placements", feedId, inserted)
	return &FetchCycleResult{Inserted: inserted}, nil
}

// fetchFromAllAdapters invokes every adapter in parallel and collects the
// outcomes back into priority order, so merge results stay deterministic no
// matter which provider answered first.
func (f *FeedAssembler) fetchFromAllAdapters(prompt string, limit int) []adapterOutcome {
	outcomes := make([]adapterOutcome, len(f.Adapters))

	var wg sync.WaitGroup
	for idx := range f.Adapters {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			candidates, err := f.Adapters[idx].FetchCandidates(prompt, limit)
			outcomes[idx] = adapterOutcome{candidates: candidates, err: err}
		}(idx)
	}
	wg.Wait()

	return outcomes
}

func (f *FeedAssembler) loadAllocator(feedId string) (*Allocator, []float64, error) {
	var placements []model.FeedPlacement
	if err := f.DB.Where("feed_id = ?", feedId).Order("position asc").Find(&placements).Error; err != nil {
		return nil, nil, errors.Wrap(err, "fail to load placements for allocation")
	}

	positions := make([]float64, 0, len(placements))
	for _, placement := range placements {
		positions = append(positions, placement.Position)
	}
	return NewAllocator(positions, time.Now()), positions, nil
}

// openViewerWindow points the allocator just past the viewer's last-seen
// placement so a viewer-aware provider's results intersperse with what is
// already loaded instead of piling up at the end.
func (f *FeedAssembler) openViewerWindow(allocator *Allocator, feed *model.Feed, positions []float64) {
	if feed.LastSeenIndex == nil || *feed.LastSeenIndex < 0 || *feed.LastSeenIndex >= len(positions) {
		allocator.CloseWindow()
		return
	}
	idx := *feed.LastSeenIndex
	after := positions[idx]
	var before *float64
	if idx+1 < len(positions) {
		before = &positions[idx+1]
	}
	allocator.OpenWindow(after, before)
}

// mergeCandidate upserts the canonical reel and creates the feed placement
// when the pair is not placed yet. Returns whether a new placement landed.
func (f *FeedAssembler) mergeCandidate(feedId string, candidate provider.Candidate, allocator *Allocator, interleave bool) (bool, error) {
	// Generated clips may arrive before rendering finishes: they are placed
	// pending, keyed by source reference, and backfilled later. Everything
	// else needs a playable url.
	if !candidate.HasVideoUrl() {
		if candidate.SourceType != model.SourceTypeGenerated || candidate.SourceReference == "" {
			return false, nil
		}
	}

	placed := false
	err := f.DB.Transaction(func(tx *gorm.DB) error {
		reel, err := api.UpsertReelImpl(tx, candidate)
		if err != nil {
			return err
		}

		// A duplicate contribution is skipped, never double counted, never
		// repositioned.
		var existing model.FeedPlacement
		if tx.Where("feed_id = ? AND reel_id = ?", feedId, reel.Id).First(&existing).RowsAffected > 0 {
			return nil
		}

		status := model.PlacementStatusReady
		if reel.VideoUrl == nil {
			status = model.PlacementStatusPending
		}

		var position float64
		if interleave {
			position = allocator.NextInWindow()
		} else {
			position = allocator.NextAppend()
		}

		placement := model.FeedPlacement{
			FeedID:   feedId,
			ReelID:   reel.Id,
			Position: position,
			Status:   status,
		}
		// OnConflict covers the race where another cycle placed the same pair
		// between our existence check and this insert.
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&placement)
		if result.Error != nil {
			return errors.Wrap(result.Error, "fail to insert placement")
		}
		placed = result.RowsAffected > 0
		return nil
	})
	return placed, err
}

func viewerAware(adapter provider.SourceAdapter) bool {
	aware, ok := adapter.(provider.ViewerAwareAdapter)
	return ok && aware.InterleaveNearViewer()
}

package assembler

import (
	"os"
	"testing"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/provider"
	"github.com/BagetTeam/ReeLearners/server/api"
	"github.com/BagetTeam/ReeLearners/utils"
	"github.com/BagetTeam/ReeLearners/utils/dotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	dotenv.LoadDotEnvsInTests()
	os.Exit(m.Run())
}

// fakeAdapter is an in-memory provider for cycle tests.
type fakeAdapter struct {
	name       string
	candidates []provider.Candidate
	err        error
}

func (f fakeAdapter) Name() string { return f.name }

func (f fakeAdapter) FetchCandidates(prompt string, limit int) ([]provider.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type fakeViewerAdapter struct {
	fakeAdapter
}

func (f fakeViewerAdapter) InterleaveNearViewer() bool { return true }

func externalCandidate(videoUrl string, title string) provider.Candidate {
	return provider.Candidate{
		VideoUrl:   videoUrl,
		Title:      title,
		SourceType: model.SourceTypeExternal,
	}
}

func setupFeed(t *testing.T, db *gorm.DB) *model.Feed {
	t.Helper()
	user, err := api.UpsertUserImpl(db, "auth-assembler", "a@b.c", "Asm", nil)
	require.NoError(t, err)
	feed, err := api.CreateFeedImpl(db, user.Id, "rock climbing", "", nil, nil)
	require.NoError(t, err)
	return feed
}

func TestRunFetchCycle(t *testing.T) {
	t.Run("inserts from every healthy adapter and marks the feed ready", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		feed := setupFeed(t, db)

		feedAssembler := NewFeedAssembler(db, 8,
			fakeAdapter{name: "one", candidates: []provider.Candidate{
				externalCandidate("https://cdn/a.mp4", "A"),
				externalCandidate("https://cdn/b.mp4", "B"),
			}},
			fakeAdapter{name: "two", err: &model.ProviderError{Provider: "two", StatusCode: 502}},
			fakeAdapter{name: "three", candidates: []provider.Candidate{
				externalCandidate("https://cdn/c.mp4", "C"),
			}},
		)

		result, err := feedAssembler.RunFetchCycle(feed.Id, feed.Prompt, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Inserted)

		refreshed, err := api.GetFeedImpl(db, feed.Id)
		require.NoError(t, err)
		assert.Equal(t, model.FeedStatusReady, refreshed.Status)

		placed, err := api.ListReelsForFeedImpl(db, feed.Id, nil, 0)
		require.NoError(t, err)
		require.Len(t, placed, 3)
		// Priority order one > three within ascending positions.
		assert.Equal(t, "https://cdn/a.mp4", *placed[0].Reel.VideoUrl)
		assert.Equal(t, "https://cdn/b.mp4", *placed[1].Reel.VideoUrl)
		assert.Equal(t, "https://cdn/c.mp4", *placed[2].Reel.VideoUrl)
		assert.Less(t, placed[0].Position, placed[1].Position)
		assert.Less(t, placed[1].Position, placed[2].Position)
	})

	t.Run("re-running the same cycle places nothing new", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		feed := setupFeed(t, db)

		feedAssembler := NewFeedAssembler(db, 8,
			fakeAdapter{name: "one", candidates: []provider.Candidate{
				externalCandidate("https://cdn/a.mp4", "A"),
				externalCandidate("https://cdn/b.mp4", "B"),
			}},
		)

		first, err := feedAssembler.RunFetchCycle(feed.Id, feed.Prompt, 0)
		require.NoError(t, err)
		require.Equal(t, 2, first.Inserted)

		placedBefore, err := api.ListReelsForFeedImpl(db, feed.Id, nil, 0)
		require.NoError(t, err)

		second, err := feedAssembler.RunFetchCycle(feed.Id, feed.Prompt, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, second.Inserted)

		placedAfter, err := api.ListReelsForFeedImpl(db, feed.Id, nil, 0)
		require.NoError(t, err)
		require.Len(t, placedAfter, 2)
		// Already-placed reels never move.
		for idx := range placedBefore {
			assert.Equal(t, placedBefore[idx].Position, placedAfter[idx].Position)
			assert.Equal(t, placedBefore[idx].Reel.Id, placedAfter[idx].Reel.Id)
		}
	})

	t.Run("the same video from two adapters lands once", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		feed := setupFeed(t, db)

		feedAssembler := NewFeedAssembler(db, 8,
			fakeAdapter{name: "one", candidates: []provider.Candidate{
				externalCandidate("https://cdn/shared.mp4", "From one"),
			}},
			fakeAdapter{name: "two", candidates: []provider.Candidate{
				externalCandidate("https://cdn/shared.mp4", "From two"),
			}},
		)

		result, err := feedAssembler.RunFetchCycle(feed.Id, feed.Prompt, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Inserted)

		var reelCount int64
		require.NoError(t, db.Model(&model.Reel{}).Count(&reelCount).Error)
		assert.Equal(t, int64(1), reelCount)
	})

	t.Run("candidates without a url are skipped unless resolvable later", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		feed := setupFeed(t, db)

		feedAssembler := NewFeedAssembler(db, 8,
			fakeAdapter{name: "one", candidates: []provider.Candidate{
				{Title: "No url, no reference", SourceType: model.SourceTypeExternal},
				{Title: "Rendering", SourceReference: "job-42", SourceType: model.SourceTypeGenerated},
			}},
		)

		result, err := feedAssembler.RunFetchCycle(feed.Id, feed.Prompt, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Inserted)

		placed, err := api.ListReelsForFeedImpl(db, feed.Id, nil, 0)
		require.NoError(t, err)
		require.Len(t, placed, 1)
		assert.Equal(t, model.PlacementStatusPending, placed[0].Status)

		// Backfilling the rendered url flips the placement to ready.
		videoUrl := "https://cdn/rendered.mp4"
		_, err = api.PatchReelImpl(db, placed[0].Reel.Id, api.ReelPatch{VideoUrl: &videoUrl})
		require.NoError(t, err)

		placed, err = api.ListReelsForFeedImpl(db, feed.Id, nil, 0)
		require.NoError(t, err)
		require.Len(t, placed, 1)
		assert.Equal(t, model.PlacementStatusReady, placed[0].Status)
	})

	t.Run("viewer aware results interleave just past the last seen reel", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		feed := setupFeed(t, db)

		seeded := NewFeedAssembler(db, 8,
			fakeAdapter{name: "seed", candidates: []provider.Candidate{
				externalCandidate("https://cdn/a.mp4", "A"),
				externalCandidate("https://cdn/b.mp4", "B"),
				externalCandidate("https://cdn/c.mp4", "C"),
			}},
		)
		_, err := seeded.RunFetchCycle(feed.Id, feed.Prompt, 0)
		require.NoError(t, err)

		placed, err := api.ListReelsForFeedImpl(db, feed.Id, nil, 0)
		require.NoError(t, err)
		require.Len(t, placed, 3)

		tracker := &ProgressTracker{DB: db}
		lastSeen := 0
		_, err = tracker.RecordProgress(feed.Id, &lastSeen, &placed[0].Reel.Id)
		require.NoError(t, err)

		social := NewFeedAssembler(db, 8,
			fakeViewerAdapter{fakeAdapter{name: "social", candidates: []provider.Candidate{
				externalCandidate("https://cdn/s1.mp4", "S1"),
				externalCandidate("https://cdn/s2.mp4", "S2"),
			}}},
		)
		result, err := social.RunFetchCycle(feed.Id, feed.Prompt, 0)
		require.NoError(t, err)
		require.Equal(t, 2, result.Inserted)

		after, err := api.ListReelsForFeedImpl(db, feed.Id, nil, 0)
		require.NoError(t, err)
		require.Len(t, after, 5)
		// New items sit between the viewed reel and its old neighbor.
		assert.Equal(t, "https://cdn/a.mp4", *after[0].Reel.VideoUrl)
		assert.Equal(t, "https://cdn/s1.mp4", *after[1].Reel.VideoUrl)
		assert.Equal(t, "https://cdn/s2.mp4", *after[2].Reel.VideoUrl)
		assert.Equal(t, "https://cdn/b.mp4", *after[3].Reel.VideoUrl)
	})

	t.Run("every adapter unconfigured fails the cycle", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		feed := setupFeed(t, db)

		feedAssembler := NewFeedAssembler(db, 8,
			fakeAdapter{name: "one", err: &model.ConfigurationError{Provider: "one", Missing: "VIDEO_API_URL"}},
			fakeAdapter{name: "two", err: &model.ConfigurationError{Provider: "two", Missing: "SOCIAL_API_URL"}},
		)

		_, err := feedAssembler.RunFetchCycle(feed.Id, feed.Prompt, 0)
		require.Error(t, err)
		assert.True(t, model.IsConfigurationError(err))

		refreshed, err := api.GetFeedImpl(db, feed.Id)
		require.NoError(t, err)
		assert.Equal(t, model.FeedStatusPending, refreshed.Status)
	})

	t.Run("no adapters at all fails the cycle", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		feed := setupFeed(t, db)

		feedAssembler := NewFeedAssembler(db, 8)
		_, err := feedAssembler.RunFetchCycle(feed.Id, feed.Prompt, 0)
		require.Error(t, err)
		assert.True(t, model.IsConfigurationError(err))
	})

	t.Run("unknown feed is a not found error", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)

		feedAssembler := NewFeedAssembler(db, 8, fakeAdapter{name: "one"})
		_, err := feedAssembler.RunFetchCycle("no-such-feed", "anything", 0)
		require.Error(t, err)
		assert.True(t, model.IsNotFound(err))
	})
}

func TestRecordProgress(t *testing.T) {
	t.Run("tracks the marker and reports remaining content", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		feed := setupFeed(t, db)

		seeded := NewFeedAssembler(db, 8,
			fakeAdapter{name: "seed", candidates: []provider.Candidate{
				externalCandidate("https://cdn/a.mp4", "A"),
				externalCandidate("https://cdn/b.mp4", "B"),
				externalCandidate("https://cdn/c.mp4", "C"),
			}},
		)
		_, err := seeded.RunFetchCycle(feed.Id, feed.Prompt, 0)
		require.NoError(t, err)

		placed, err := api.ListReelsForFeedImpl(db, feed.Id, nil, 0)
		require.NoError(t, err)

		tracker := &ProgressTracker{DB: db}

		lastSeen := 0
		result, err := tracker.RecordProgress(feed.Id, &lastSeen, &placed[0].Reel.Id)
		require.NoError(t, err)
		assert.Equal(t, 2, result.RemainingAhead)
		assert.False(t, result.ShouldHydrate)
		require.NotNil(t, result.Feed.LastSeenIndex)
		assert.Equal(t, 0, *result.Feed.LastSeenIndex)

		lastSeen = 2
		result, err = tracker.RecordProgress(feed.Id, &lastSeen, &placed[2].Reel.Id)
		require.NoError(t, err)
		assert.Equal(t, 0, result.RemainingAhead)
		assert.True(t, result.ShouldHydrate)
	})

	t.Run("pending placements do not postpone hydration", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		feed := setupFeed(t, db)

		seeded := NewFeedAssembler(db, 8,
			fakeAdapter{name: "seed", candidates: []provider.Candidate{
				externalCandidate("https://cdn/done.mp4", "Done"),
				{Title: "Rendering", SourceReference: "job-7", SourceType: model.SourceTypeGenerated},
			}},
		)
		_, err := seeded.RunFetchCycle(feed.Id, feed.Prompt, 0)
		require.NoError(t, err)

		placed, err := api.ListReelsForFeedImpl(db, feed.Id, nil, 0)
		require.NoError(t, err)
		require.Len(t, placed, 2)

		tracker := &ProgressTracker{DB: db}

		// The viewer finished the only playable reel. The pending clip past
		// them has no video yet, so the feed is due for more content.
		lastSeen := 0
		result, err := tracker.RecordProgress(feed.Id, &lastSeen, &placed[0].Reel.Id)
		require.NoError(t, err)
		assert.Equal(t, 0, result.RemainingAhead)
		assert.True(t, result.ShouldHydrate)
	})

	t.Run("rejects a reel that is not placed in the feed", func(t *testing.T) {
		db, _ := utils.CreateTempDB(t)
		feed := setupFeed(t, db)

		tracker := &ProgressTracker{DB: db}
		lastSeen := 0
		stranger := "not-in-this-feed"
		_, err := tracker.RecordProgress(feed.Id, &lastSeen, &stranger)
		require.Error(t, err)
		assert.True(t, model.IsNotInFeed(err))
	})

	t.Run("hydration without redis is always allowed", func(t *testing.T) {
		tracker := &ProgressTracker{}
		ok, err := tracker.TryBeginHydration("any-feed")
		require.NoError(t, err)
		assert.True(t, ok)
		tracker.EndHydration("any-feed")
	})
}

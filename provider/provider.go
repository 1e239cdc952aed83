package provider

import (
	"github.com/BagetTeam/ReeLearners/model"
)

/*

A SourceAdapter fetches candidate video descriptors for a topic prompt from
one provider: the internal catalog, the generated-video pipeline, or an
external search/scrape endpoint.

Contract:
- zero candidates is a valid, successful response
- a candidate the adapter cannot derive a usable video url for is silently
	dropped inside the adapter, never surfaced as an error
- unreachable endpoint / non-2xx response -> model.ProviderError
- missing endpoint or credential configuration -> model.ConfigurationError

*/
type SourceAdapter interface {
	Name() string
	FetchCandidates(prompt string, limit int) ([]Candidate, error)
}

// ViewerAwareAdapter marks an adapter whose results should be interleaved
// shortly after the viewer's current read position instead of appended at the
// end of the feed.
type ViewerAwareAdapter interface {
	SourceAdapter
	InterleaveNearViewer() bool
}

// Candidate is one normalized video descriptor produced by an adapter.
// VideoUrl may be empty only for the generated pipeline, whose clips are
// placed as pending and backfilled once rendering finishes.
type Candidate struct {
	VideoUrl        string
	SourceReference string
	Title           string
	Description     string
	ThumbnailUrl    string
	DurationSeconds int
	SourceType      model.SourceType
	Metadata        model.ReelMetadata
}

// HasVideoUrl reports whether the candidate is playable right now.
func (c Candidate) HasVideoUrl() bool {
	return c.VideoUrl != ""
}

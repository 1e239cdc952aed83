package provider_instances

import (
	"strings"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/provider"
	Logger "github.com/BagetTeam/ReeLearners/utils/log"
	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// ScrapePageAdapter extracts clip candidates straight out of an HTML listing
// page. Cards are anchors carrying a data-video-url attribute:
//
//	<a class="clip-card" href="..." data-video-url="..." data-video-id="..."
//	   data-published="...">
//	  <img src="thumb.jpg"/><span class="clip-title">...</span>
//	</a>
//
// Anything the page author left out degrades per card, a card without a
// data-video-url is skipped.
type ScrapePageAdapter struct {
	Client provider.HttpClient
	Config *provider.Config
}

func (a ScrapePageAdapter) Name() string {
	return "page_scrape"
}

func (a ScrapePageAdapter) FetchCandidates(prompt string, limit int) ([]provider.Candidate, error) {
	if a.Config.ScrapePageURL == "" {
		return nil, &model.ConfigurationError{Provider: a.Name(), Missing: "SCRAPE_PAGE_URL"}
	}

	res, err := a.Client.GetWithin(a.Config.ScrapePageURL, a.Config.AdapterTimeoutSeconds)
	if err != nil {
		return nil, &model.ProviderError{Provider: a.Name(), Detail: err.Error()}
	}
	if provider.IsNon200HttpResponse(res) {
		return nil, &model.ProviderError{
			Provider:   a.Name(),
			StatusCode: res.StatusCode,
			Detail:     provider.ReadHttpResponseBody(res),
		}
	}

	defer res.Body.Close()
	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, &model.ProviderError{Provider: a.Name(), Detail: "unparsable page: " + err.Error()}
	}

	candidates := []provider.Candidate{}
	doc.Find("a.clip-card").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		videoUrl, ok := card.Attr("data-video-url")
		if !ok || videoUrl == "" {
			return true
		}

		title := strings.TrimSpace(card.Find(".clip-title").Text())
		if title == "" {
			title = UntitledClipTitle
		}

		metadata := model.ReelMetadata{Provider: a.Name()}
		if watchUrl, ok := card.Attr("href"); ok {
			metadata.WatchUrl = watchUrl
		}
		if published, ok := card.Attr("data-published"); ok {
			// Listing pages write dates in whatever format they like.
			if ts, err := dateparse.ParseAny(published); err == nil {
				metadata.Extra = map[string]interface{}{"publishedAt": ts.UTC().Format("2006-01-02T15:04:05Z")}
			} else {
				Logger.Log.Warn("fail to parse published date from scraped card: ", published)
			}
		}

		candidate := provider.Candidate{
			VideoUrl:    videoUrl,
			Title:       title,
			Description: prompt,
			SourceType:  model.SourceTypeExternal,
			Metadata:    metadata,
		}
		if videoId, ok := card.Attr("data-video-id"); ok {
			candidate.SourceReference = videoId
		}
		if thumb, ok := card.Find("img").Attr("src"); ok {
			candidate.ThumbnailUrl = thumb
		}

		candidates = append(candidates, candidate)
		return len(candidates) < limit
	})

	return candidates, nil
}

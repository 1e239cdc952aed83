package provider_instances

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/provider"
)

var instagramShortcodeRe = regexp.MustCompile(`/(?:reel|p)/([A-Za-z0-9_-]+)`)

// SocialApiAdapter pulls tiktok/instagram candidates from the social scrape
// service, which shares the search endpoint contract but namespaces results
// with a sources parameter. Results from here should show up close to what
// the viewer is currently watching, so the adapter is viewer aware.
type SocialApiAdapter struct {
	Client provider.HttpClient
	Config *provider.Config
	// Comma-joined provider list forwarded as the sources parameter,
	// e.g. "tiktok,instagram".
	Sources []string
}

func (a SocialApiAdapter) Name() string {
	return "social_scrape"
}

func (a SocialApiAdapter) InterleaveNearViewer() bool {
	return true
}

func (a SocialApiAdapter) FetchCandidates(prompt string, limit int) ([]provider.Candidate, error) {
	if a.Config.SocialAPIBaseURL == "" {
		return nil, &model.ConfigurationError{Provider: a.Name(), Missing: "SOCIAL_API_URL"}
	}

	endpoint, err := searchEndpoint(a.Config.SocialAPIBaseURL, prompt, limit, strings.Join(a.Sources, ","))
	if err != nil {
		return nil, &model.ConfigurationError{Provider: a.Name(), Missing: "valid SOCIAL_API_URL"}
	}

	res, err := a.Client.GetWithin(endpoint, a.Config.AdapterTimeoutSeconds)
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

	var payload SearchApiResponse
	if err := json.Unmarshal([]byte(provider.ReadHttpResponseBody(res)), &payload); err != nil {
		return nil, &model.ProviderError{Provider: a.Name(), Detail: "malformed response: " + err.Error()}
	}

	candidates := []provider.Candidate{}
	for _, video := range payload.Videos {
		videoUrl := pickSocialVideoUrl(video)
		if videoUrl == "" {
			continue
		}
		title := video.Title
		if title == "" {
			title = UntitledClipTitle
		}
		candidates = append(candidates, provider.Candidate{
			VideoUrl:        videoUrl,
			SourceReference: video.VideoId,
			Title:           title,
			Description:     prompt,
			SourceType:      model.SourceTypeExternal,
			Metadata: model.ReelMetadata{
				WatchUrl: video.WatchUrl,
				Provider: video.Source,
			},
		})
	}
	return candidates, nil
}

// pickSocialVideoUrl derives an embeddable url when the service did not hand
// one over: tiktok embeds are addressable by video id, instagram ones by the
// shortcode buried in the permalink.
func pickSocialVideoUrl(video SearchApiVideo) string {
	if video.EmbedUrl != "" {
		return video.EmbedUrl
	}

	switch video.Source {
	case "tiktok":
		if video.VideoId != "" {
			return fmt.Sprintf("https://www.tiktok.com/embed/v2/%s", video.VideoId)
		}
	case "instagram":
		if m := instagramShortcodeRe.FindStringSubmatch(video.WatchUrl); m != nil {
			return fmt.Sprintf("https://www.instagram.com/reel/%s/embed", m[1])
		}
	}

	return video.WatchUrl
}

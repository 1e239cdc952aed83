package provider_instances

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/provider"
)

const UntitledClipTitle = "Untitled clip"

// SearchApiVideo is the wire shape of one video in the search endpoint
// response. Every field is optional, the adapter degrades per item.
type SearchApiVideo struct {
	VideoId  string `json:"video_id"`
	Title    string `json:"title"`
	WatchUrl string `json:"watch_url"`
	EmbedUrl string `json:"embed_url"`
	VideoUrl string `json:"video_url"`
	Source   string `json:"source"`
}

type SearchApiResponse struct {
	Videos []SearchApiVideo `json:"videos"`
}

// SearchApiAdapter pulls short-video candidates from the external video
// search service: GET {base}/search?query=<prompt>&max_results=<n>
type SearchApiAdapter struct {
	Client provider.HttpClient
	Config *provider.Config
}

func (a SearchApiAdapter) Name() string {
	return "video_search"
}

func (a SearchApiAdapter) FetchCandidates(prompt string, limit int) ([]provider.Candidate, error) {
	if a.Config.VideoAPIBaseURL == "" {
		return nil, &model.ConfigurationError{Provider: a.Name(), Missing: "VIDEO_API_URL"}
	}

	endpoint, err := searchEndpoint(a.Config.VideoAPIBaseURL, prompt, limit, "" /*sources*/)
	if err != nil {
		return nil, &model.ConfigurationError{Provider: a.Name(), Missing: "valid VIDEO_API_URL"}
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
		videoUrl := pickVideoUrl(video)
		if videoUrl == "" {
			// Not an error, a result we cannot play is just skipped.
			continue
		}
		title := video.Title
		if title == "" {
			title = UntitledClipTitle
		}
		providerName := video.Source
		if providerName == "" {
			providerName = "youtube"
		}
		candidates = append(candidates, provider.Candidate{
			VideoUrl:        videoUrl,
			SourceReference: video.VideoId,
			Title:           title,
			Description:     prompt,
			SourceType:      model.SourceTypeExternal,
			Metadata: model.ReelMetadata{
				WatchUrl: video.WatchUrl,
				Provider: providerName,
			},
		})
	}
	return candidates, nil
}

// pickVideoUrl prefers the embeddable url, falls back to the watch page, then
// to a raw video url.
func pickVideoUrl(video SearchApiVideo) string {
	if video.EmbedUrl != "" {
		return video.EmbedUrl
	}
	if video.WatchUrl != "" {
		return video.WatchUrl
	}
	return video.VideoUrl
}

func searchEndpoint(base string, prompt string, limit int, sources string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = "/search"
	q := u.Query()
	q.Set("query", prompt)
	q.Set("max_results", strconv.Itoa(limit))
	if sources != "" {
		q.Set("sources", sources)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

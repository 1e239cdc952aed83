package provider_instances

import (
	"bytes"
	"encoding/json"
	"net/url"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/provider"
)

type generateRequest struct {
	Prompt   string `json:"prompt"`
	MaxClips int    `json:"max_clips"`
}

type generatedClip struct {
	JobId        string `json:"job_id"`
	Title        string `json:"title"`
	ThumbnailUrl string `json:"thumbnail_url"`
	VideoUrl     string `json:"video_url"`
}

type generateResponse struct {
	Clips []generatedClip `json:"clips"`
}

// GeneratedPipelineAdapter submits the prompt to the generative video
// pipeline. Rendering is slow, so most clips come back without a video url
// yet: those are placed as pending reels keyed by job id and backfilled
// through the reel patch operation once the pipeline calls back.
type GeneratedPipelineAdapter struct {
	Client provider.HttpClient
	Config *provider.Config
}

func (a GeneratedPipelineAdapter) Name() string {
	return "generated_pipeline"
}

func (a GeneratedPipelineAdapter) FetchCandidates(prompt string, limit int) ([]provider.Candidate, error) {
	if a.Config.GenerateAPIBaseURL == "" {
		return nil, &model.ConfigurationError{Provider: a.Name(), Missing: "GENERATE_API_URL"}
	}

	endpoint, err := url.Parse(a.Config.GenerateAPIBaseURL)
	if err != nil {
		return nil, &model.ConfigurationError{Provider: a.Name(), Missing: "valid GENERATE_API_URL"}
	}
	endpoint.Path = "/generate"

	body, err := json.Marshal(generateRequest{Prompt: prompt, MaxClips: limit})
	if err != nil {
		return nil, &model.ProviderError{Provider: a.Name(), Detail: err.Error()}
	}

	res, err := a.Client.PostWithin(endpoint.String(), "application/json", bytes.NewReader(body), a.Config.AdapterTimeoutSeconds)
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

	var payload generateResponse
	if err := json.Unmarshal([]byte(provider.ReadHttpResponseBody(res)), &payload); err != nil {
		return nil, &model.ProviderError{Provider: a.Name(), Detail: "malformed response: " + err.Error()}
	}

	candidates := []provider.Candidate{}
	for _, clip := range payload.Clips {
		// A clip with neither a url nor a job id can never be resolved later.
		if clip.VideoUrl == "" && clip.JobId == "" {
			continue
		}
		title := clip.Title
		if title == "" {
			title = UntitledClipTitle
		}
		candidates = append(candidates, provider.Candidate{
			VideoUrl:        clip.VideoUrl,
			SourceReference: clip.JobId,
			Title:           title,
			Description:     prompt,
			ThumbnailUrl:    clip.ThumbnailUrl,
			SourceType:      model.SourceTypeGenerated,
			Metadata:        model.ReelMetadata{Provider: a.Name()},
		})
	}
	return candidates, nil
}

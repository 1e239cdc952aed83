package provider_instances

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/BagetTeam/ReeLearners/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func socialApiConfig(baseUrl string) *provider.Config {
	return &provider.Config{
		SocialAPIBaseURL:      baseUrl,
		AdapterTimeoutSeconds: 2,
	}
}

func TestSocialApiFetchCandidates(t *testing.T) {
	t.Run("forwards the sources parameter", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "tiktok,instagram", r.URL.Query().Get("sources"))
			w.Write([]byte(`{"videos":[]}`))
		}))
		defer server.Close()

		adapter := SocialApiAdapter{
			Config:  socialApiConfig(server.URL),
			Sources: []string{"tiktok", "instagram"},
		}
		candidates, err := adapter.FetchCandidates("dance", 3)

		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("derives a tiktok embed url from the video id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"videos":[
				{"video_id":"7216","title":"Dance","watch_url":"https://www.tiktok.com/@x/video/7216","source":"tiktok"}
			]}`))
		}))
		defer server.Close()

		adapter := SocialApiAdapter{Config: socialApiConfig(server.URL)}
		candidates, err := adapter.FetchCandidates("dance", 3)

		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "https://www.tiktok.com/embed/v2/7216", candidates[0].VideoUrl)
		assert.Equal(t, "tiktok", candidates[0].Metadata.Provider)
	})

	t.Run("derives an instagram embed url from the permalink shortcode", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"videos":[
				{"video_id":"ig1","title":"Reel","watch_url":"https://www.instagram.com/reel/Cxy_12-ab/","source":"instagram"}
			]}`))
		}))
		defer server.Close()

		adapter := SocialApiAdapter{Config: socialApiConfig(server.URL)}
		candidates, err := adapter.FetchCandidates("dance", 3)

		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "https://www.instagram.com/reel/Cxy_12-ab/embed", candidates[0].VideoUrl)
	})

	t.Run("service-provided embed url wins over derivation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"videos":[
				{"video_id":"7216","embed_url":"https://svc/embed/7216","source":"tiktok"}
			]}`))
		}))
		defer server.Close()

		adapter := SocialApiAdapter{Config: socialApiConfig(server.URL)}
		candidates, err := adapter.FetchCandidates("dance", 3)

		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "https://svc/embed/7216", candidates[0].VideoUrl)
	})

	t.Run("is viewer aware", func(t *testing.T) {
		var adapter provider.SourceAdapter = SocialApiAdapter{}
		aware, ok := adapter.(provider.ViewerAwareAdapter)
		require.True(t, ok)
		assert.True(t, aware.InterleaveNearViewer())
	})

	t.Run("missing endpoint config surfaces as a configuration error", func(t *testing.T) {
		adapter := SocialApiAdapter{Config: &provider.Config{}}
		_, err := adapter.FetchCandidates("dance", 3)

		require.Error(t, err)
		assert.True(t, model.IsConfigurationError(err))
	})
}

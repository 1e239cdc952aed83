package provider

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Config carries every provider endpoint and budget, parsed from environment
// variables after dotenv layering. Empty endpoint means that adapter is not
// configured and reports a ConfigurationError when invoked.
type Config struct {
	// Base url of the external video search service, e.g. http://localhost:8000
	VideoAPIBaseURL string `envconfig:"VIDEO_API_URL"`
	// Base url of the social scrape service (tiktok/instagram sources).
	SocialAPIBaseURL string `envconfig:"SOCIAL_API_URL"`
	// Url of an HTML listing page to scrape for clips.
	ScrapePageURL string `envconfig:"SCRAPE_PAGE_URL"`
	// Base url of the generative video pipeline.
	GenerateAPIBaseURL string `envconfig:"GENERATE_API_URL"`

	// Per-adapter timeout budget in seconds.
	AdapterTimeoutSeconds int `envconfig:"ADAPTER_TIMEOUT_SECONDS" default:"10"`
	// Default number of candidates requested per provider per cycle.
	DefaultFetchLimit int `envconfig:"DEFAULT_FETCH_LIMIT" default:"8"`
}

// LoadConfig parses provider configuration from the environment.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, errors.Wrap(err, "fail to parse provider config")
	}
	return &c, nil
}

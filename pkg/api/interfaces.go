package api

import (
	"context"
	"time"

	"serp-go/pkg/serp"
)

// Config holds DataForSEO connection settings. It is passed in explicitly;
// nothing in this package reads the environment.
type Config struct {
	BaseURL    string
	Login      string
	Password   string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultConfig returns production endpoint settings without credentials
func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://api.dataforseo.com",
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// SERPRequest selects one Google organic SERP
type SERPRequest struct {
	Keyword      string `json:"keyword"`
	LocationCode int    `json:"location_code,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	Depth        int    `json:"depth,omitempty"`
}

// VolumeRequest asks for Google Ads search volume of up to 1000 keywords
type VolumeRequest struct {
	Keywords     []string `json:"keywords"`
	LocationCode int      `json:"location_code,omitempty"`
	LanguageCode string   `json:"language_code,omitempty"`
}

// KeywordVolume is the search volume data for one keyword. Volume and CPC
// are None when the provider has no data for the keyword.
type KeywordVolume struct {
	Keyword      string               `json:"keyword"`
	SearchVolume serp.Option[int]     `json:"searchVolume"`
	Competition  string               `json:"competition"`
	CPC          serp.Option[float64] `json:"cpc"`
}

// Client fetches SERP snapshots and keyword data from the SEO data provider
type Client interface {
	FetchSERP(ctx context.Context, req SERPRequest) (*serp.Snapshot, error)
	SearchVolume(ctx context.Context, req VolumeRequest) ([]KeywordVolume, error)
}

package models

import "time"

// Brand is an entry of the brand directory on the prompt-response platform
type Brand struct {
	ID                        string `json:"id"`
	Name                      string `json:"name"`
	Domain                    string `json:"domain"`
	GA4PropertyID             string `json:"ga4_property_id,omitempty"`
	AgencyAnalyticsCampaignID string `json:"agency_analytics_campaign_id,omitempty"`
	SyncTracking
}

// Prompt is a tracked question asked of an LLM on a brand's behalf
type Prompt struct {
	ID        string    `json:"id"`
	BrandID   string    `json:"brand_id"`
	Text      string    `json:"text"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	SyncTracking
}

// Response is one LLM answer to a prompt
type Response struct {
	ID          string    `json:"id"`
	PromptID    string    `json:"prompt_id"`
	BrandID     string    `json:"brand_id"`
	Model       string    `json:"model"`
	Text        string    `json:"text"`
	Mentioned   bool      `json:"mentioned"`
	Position    *int      `json:"position,omitempty"`
	Sentiment   string    `json:"sentiment,omitempty"`
	RespondedAt time.Time `json:"responded_at"`
	SyncTracking
}

// TrafficRow is one GA4 report row for a property, date and channel
type TrafficRow struct {
	PropertyID  string  `json:"property_id"`
	BrandID     string  `json:"brand_id"`
	Date        string  `json:"date"`
	Channel     string  `json:"channel"`
	Sessions    int64   `json:"sessions"`
	Users       int64   `json:"users"`
	Conversions float64 `json:"conversions"`
	SyncTracking
}

// Campaign is an Agency Analytics SEO campaign
type Campaign struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Domain  string `json:"domain"`
	BrandID string `json:"brand_id,omitempty"`
	SyncTracking
}

// KeywordRanking is a keyword position snapshot for a campaign
type KeywordRanking struct {
	CampaignID   string `json:"campaign_id"`
	Keyword      string `json:"keyword"`
	SearchEngine string `json:"search_engine"`
	Rank         *int   `json:"rank,omitempty"`
	PreviousRank *int   `json:"previous_rank,omitempty"`
	SearchVolume int    `json:"search_volume"`
	Date         string `json:"date"`
	SyncTracking
}

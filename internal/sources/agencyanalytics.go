package sources

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/brand-sync/internal/config"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
)

const agencyAnalyticsSource = "agency-analytics"

// AgencyAnalyticsClient reads SEO campaigns and keyword rankings
type AgencyAnalyticsClient struct {
	rest       *restClient
	pageSize   int
	configured bool
}

// NewAgencyAnalyticsClient creates a new Agency Analytics client
func NewAgencyAnalyticsClient(cfg config.SourceConfig, logger *logrus.Logger, opts ...ClientOption) *AgencyAnalyticsClient {
	aa := cfg.AgencyAnalytics
	pageSize := aa.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &AgencyAnalyticsClient{
		rest:       newRESTClient(agencyAnalyticsSource, aa.BaseURL, aa.APIKey, cfg, logger, opts...),
		pageSize:   pageSize,
		configured: aa.BaseURL != "" && aa.APIKey != "",
	}
}

// Configured reports whether an API key was supplied
func (c *AgencyAnalyticsClient) Configured() bool {
	return c.configured
}

type offsetEnvelope[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// offsetPages walks an offset/limit listing. page is 1-based.
func offsetPages[P any, T any](c *AgencyAnalyticsClient, path string, convert func(P) T) func(ctx context.Context, page int) (Page[T], error) {
	return func(ctx context.Context, page int) (Page[T], error) {
		offset := (page - 1) * c.pageSize
		q := url.Values{
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(c.pageSize)},
		}
		body, err := c.rest.get(ctx, path, q)
		if err != nil {
			return Page[T]{}, err
		}
		var env offsetEnvelope[P]
		if err := json.Unmarshal(body, &env); err != nil {
			return Page[T]{}, NewAPIError(agencyAnalyticsSource, 200, "failed to decode response", err)
		}
		items := make([]T, 0, len(env.Data))
		for _, p := range env.Data {
			items = append(items, convert(p))
		}
		more := len(items) >= c.pageSize
		if env.Total > 0 {
			more = offset+len(items) < env.Total
		}
		return Page[T]{Items: items, HasMore: more}, nil
	}
}

type campaignPayload struct {
	ID      flexID `json:"id"`
	Company string `json:"company"`
	URL     string `json:"url"`
}

// ListCampaigns returns every campaign visible to the API key
func (c *AgencyAnalyticsClient) ListCampaigns(ctx context.Context) ([]*models.Campaign, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	return collectPages(ctx, offsetPages(c, "/campaigns", func(p campaignPayload) *models.Campaign {
		return &models.Campaign{ID: p.ID.String(), Name: p.Company, Domain: p.URL}
	}))
}

type rankingPayload struct {
	Keyword      string `json:"keyword"`
	SearchEngine string `json:"search_engine"`
	Rank         *int   `json:"rank"`
	PreviousRank *int   `json:"previous_rank"`
	SearchVolume int    `json:"search_volume"`
	Date         string `json:"date"`
}

// ListRankings returns the keyword rankings of a campaign
func (c *AgencyAnalyticsClient) ListRankings(ctx context.Context, campaignID string) ([]*models.KeywordRanking, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	path := "/campaigns/" + url.PathEscape(campaignID) + "/rankings"
	return collectPages(ctx, offsetPages(c, path, func(p rankingPayload) *models.KeywordRanking {
		engine := p.SearchEngine
		if engine == "" {
			engine = "google"
		}
		return &models.KeywordRanking{
			CampaignID:   campaignID,
			Keyword:      p.Keyword,
			SearchEngine: engine,
			Rank:         p.Rank,
			PreviousRank: p.PreviousRank,
			SearchVolume: p.SearchVolume,
			Date:         p.Date,
		}
	}))
}

package sources

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/brand-sync/internal/config"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
)

const brandPlatformSource = "brand-platform"

// BrandPlatformClient reads the brand directory, prompts and LLM responses
// from the prompt-response platform
type BrandPlatformClient struct {
	rest       *restClient
	pageSize   int
	configured bool
}

// NewBrandPlatformClient creates a new brand platform client
func NewBrandPlatformClient(cfg config.SourceConfig, logger *logrus.Logger, opts ...ClientOption) *BrandPlatformClient {
	bp := cfg.BrandPlatform
	pageSize := bp.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &BrandPlatformClient{
		rest:       newRESTClient(brandPlatformSource, bp.BaseURL, bp.APIKey, cfg, logger, opts...),
		pageSize:   pageSize,
		configured: bp.BaseURL != "" && bp.APIKey != "",
	}
}

// Configured reports whether the client has credentials
func (c *BrandPlatformClient) Configured() bool {
	return c.configured
}

type pageMeta struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

type listEnvelope[T any] struct {
	Data []T      `json:"data"`
	Meta pageMeta `json:"meta"`
}

func (c *BrandPlatformClient) page(ctx context.Context, path string, page int, extra url.Values, out interface{}) error {
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.pageSize))

	body, err := c.rest.get(ctx, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewAPIError(brandPlatformSource, 200, "failed to decode response", err)
	}
	return nil
}

func hasMore(meta pageMeta, page, got, pageSize int) bool {
	if meta.TotalPages > 0 {
		return page < meta.TotalPages
	}
	return got >= pageSize
}

type brandPayload struct {
	ID                        flexID `json:"id"`
	Name                      string `json:"name"`
	Domain                    string `json:"domain"`
	GA4PropertyID             flexID `json:"ga4_property_id"`
	AgencyAnalyticsCampaignID flexID `json:"agency_analytics_campaign_id"`
}

// ListBrands returns the full brand directory
func (c *BrandPlatformClient) ListBrands(ctx context.Context) ([]*models.Brand, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	return collectPages(ctx, func(ctx context.Context, page int) (Page[*models.Brand], error) {
		var env listEnvelope[brandPayload]
		if err := c.page(ctx, "/brands", page, nil, &env); err != nil {
			return Page[*models.Brand]{}, err
		}
		items := make([]*models.Brand, 0, len(env.Data))
		for _, b := range env.Data {
			items = append(items, &models.Brand{
				ID:                        b.ID.String(),
				Name:                      b.Name,
				Domain:                    b.Domain,
				GA4PropertyID:             b.GA4PropertyID.String(),
				AgencyAnalyticsCampaignID: b.AgencyAnalyticsCampaignID.String(),
			})
		}
		return Page[*models.Brand]{Items: items, HasMore: hasMore(env.Meta, page, len(items), c.pageSize)}, nil
	})
}

type promptPayload struct {
	ID        flexID    `json:"id"`
	Text      string    `json:"text"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// ListPrompts returns every tracked prompt of a brand
func (c *BrandPlatformClient) ListPrompts(ctx context.Context, brandID string) ([]*models.Prompt, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	path := "/brands/" + url.PathEscape(brandID) + "/prompts"
	return collectPages(ctx, func(ctx context.Context, page int) (Page[*models.Prompt], error) {
		var env listEnvelope[promptPayload]
		if err := c.page(ctx, path, page, nil, &env); err != nil {
			return Page[*models.Prompt]{}, err
		}
		items := make([]*models.Prompt, 0, len(env.Data))
		for _, p := range env.Data {
			items = append(items, &models.Prompt{
				ID:        p.ID.String(),
				BrandID:   brandID,
				Text:      p.Text,
				Category:  p.Category,
				CreatedAt: p.CreatedAt,
			})
		}
		return Page[*models.Prompt]{Items: items, HasMore: hasMore(env.Meta, page, len(items), c.pageSize)}, nil
	})
}

type responsePayload struct {
	ID             flexID    `json:"id"`
	PromptID       flexID    `json:"prompt_id"`
	Model          string    `json:"model"`
	Text           string    `json:"text"`
	BrandMentioned bool      `json:"brand_mentioned"`
	Position       *int      `json:"position"`
	Sentiment      string    `json:"sentiment"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListResponses returns LLM responses for a brand, optionally only those
// newer than since
func (c *BrandPlatformClient) ListResponses(ctx context.Context, brandID string, since *time.Time) ([]*models.Response, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}
	path := "/brands/" + url.PathEscape(brandID) + "/responses"
	var extra url.Values
	if since != nil {
		extra = url.Values{"since": {since.UTC().Format(time.RFC3339)}}
	}
	return collectPages(ctx, func(ctx context.Context, page int) (Page[*models.Response], error) {
		var env listEnvelope[responsePayload]
		if err := c.page(ctx, path, page, extra, &env); err != nil {
			return Page[*models.Response]{}, err
		}
		items := make([]*models.Response, 0, len(env.Data))
		for _, r := range env.Data {
			items = append(items, &models.Response{
				ID:          r.ID.String(),
				PromptID:    r.PromptID.String(),
				BrandID:     brandID,
				Model:       r.Model,
				Text:        r.Text,
				Mentioned:   r.BrandMentioned,
				Position:    r.Position,
				Sentiment:   r.Sentiment,
				RespondedAt: r.CreatedAt,
			})
		}
		return Page[*models.Response]{Items: items, HasMore: hasMore(env.Meta, page, len(items), c.pageSize)}, nil
	})
}

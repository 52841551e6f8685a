package workflow

import (
	"context"
	"time"

	"github.com/Kamar-Folarin/brand-sync/internal/models"
	"github.com/Kamar-Folarin/brand-sync/internal/sources"
)

// BrandSource is the prompt-response platform
type BrandSource interface {
	Configured() bool
	ListBrands(ctx context.Context) ([]*models.Brand, error)
	ListPrompts(ctx context.Context, brandID string) ([]*models.Prompt, error)
	ListResponses(ctx context.Context, brandID string, since *time.Time) ([]*models.Response, error)
}

// TrafficSource is the web analytics provider
type TrafficSource interface {
	Configured() bool
	FetchTraffic(ctx context.Context, propertyID, brandID, startDate, endDate string) ([]*models.TrafficRow, error)
}

// RankingSource is the SEO rank tracker
type RankingSource interface {
	Configured() bool
	ListCampaigns(ctx context.Context) ([]*models.Campaign, error)
	ListRankings(ctx context.Context, campaignID string) ([]*models.KeywordRanking, error)
}

var (
	_ BrandSource   = (*sources.BrandPlatformClient)(nil)
	_ TrafficSource = (*sources.GA4Client)(nil)
	_ RankingSource = (*sources.AgencyAnalyticsClient)(nil)
)

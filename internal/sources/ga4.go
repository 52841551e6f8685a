package sources

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"

	"github.com/Kamar-Folarin/brand-sync/internal/config"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
)

const ga4Source = "ga4"

var (
	ga4Dimensions = []string{"date", "sessionDefaultChannelGroup"}
	ga4Metrics    = []string{"sessions", "totalUsers", "conversions"}
)

// GA4Client runs the traffic report against the Google Analytics Data API
type GA4Client struct {
	svc      *analyticsdata.Service
	guard    *guard
	logger   *logrus.Logger
	pageSize int64
}

// NewGA4Client builds a client from service account credentials. Without
// credentials it returns an unconfigured client whose calls fail with
// ErrNotConfigured.
func NewGA4Client(ctx context.Context, cfg config.SourceConfig, logger *logrus.Logger, extra ...option.ClientOption) (*GA4Client, error) {
	if !cfg.GA4.Configured() {
		return newGA4Client(nil, cfg, logger), nil
	}

	credJSON := []byte(cfg.GA4.CredentialsJSON)
	if len(credJSON) == 0 {
		data, err := os.ReadFile(cfg.GA4.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read GA4 credentials: %w", err)
		}
		credJSON = data
	}

	creds, err := google.CredentialsFromJSON(ctx, credJSON, analyticsdata.AnalyticsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GA4 credentials: %w", err)
	}

	opts := []option.ClientOption{option.WithTokenSource(creds.TokenSource)}
	if cfg.GA4.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.GA4.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := analyticsdata.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GA4 service: %w", err)
	}
	return newGA4Client(svc, cfg, logger), nil
}

// NewGA4ClientWithService wraps an already constructed Data API service
func NewGA4ClientWithService(svc *analyticsdata.Service, cfg config.SourceConfig, logger *logrus.Logger) *GA4Client {
	return newGA4Client(svc, cfg, logger)
}

func newGA4Client(svc *analyticsdata.Service, cfg config.SourceConfig, logger *logrus.Logger) *GA4Client {
	pageSize := int64(cfg.GA4.PageSize)
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &GA4Client{
		svc:      svc,
		guard:    newGuard(ga4Source, cfg, logger),
		logger:   logger,
		pageSize: pageSize,
	}
}

// Configured reports whether the client can issue requests
func (c *GA4Client) Configured() bool {
	return c.svc != nil
}

func reportRequest(startDate, endDate string, limit, offset int64) *analyticsdata.RunReportRequest {
	dims := make([]*analyticsdata.Dimension, 0, len(ga4Dimensions))
	for _, d := range ga4Dimensions {
		dims = append(dims, &analyticsdata.Dimension{Name: d})
	}
	mets := make([]*analyticsdata.Metric, 0, len(ga4Metrics))
	for _, m := range ga4Metrics {
		mets = append(mets, &analyticsdata.Metric{Name: m})
	}
	return &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{{StartDate: startDate, EndDate: endDate}},
		Dimensions: dims,
		Metrics:    mets,
		Limit:      limit,
		Offset:     offset,
	}
}

func propertyName(propertyID string) string {
	if strings.HasPrefix(propertyID, "properties/") {
		return propertyID
	}
	return "properties/" + propertyID
}

// FetchTraffic returns daily sessions, users and conversions per channel for
// a property over [startDate, endDate] (YYYY-MM-DD or GA4 relative dates)
func (c *GA4Client) FetchTraffic(ctx context.Context, propertyID, brandID, startDate, endDate string) ([]*models.TrafficRow, error) {
	if c.svc == nil {
		return nil, ErrNotConfigured
	}

	var rows []*models.TrafficRow
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var resp *analyticsdata.RunReportResponse
		_, err := c.guard.do(func() ([]byte, error) {
			if err := c.guard.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			r, err := c.svc.Properties.RunReport(propertyName(propertyID), reportRequest(startDate, endDate, c.pageSize, offset)).Context(ctx).Do()
			if err != nil {
				return nil, err
			}
			resp = r
			return nil, nil
		})
		if err != nil {
			return nil, fmt.Errorf("GA4 report for property %s: %w", propertyID, err)
		}

		for _, r := range resp.Rows {
			if len(r.DimensionValues) < len(ga4Dimensions) || len(r.MetricValues) < len(ga4Metrics) {
				continue
			}
			rows = append(rows, &models.TrafficRow{
				PropertyID:  propertyID,
				BrandID:     brandID,
				Date:        r.DimensionValues[0].Value,
				Channel:     r.DimensionValues[1].Value,
				Sessions:    atoi64(r.MetricValues[0].Value),
				Users:       atoi64(r.MetricValues[1].Value),
				Conversions: atof(r.MetricValues[2].Value),
			})
		}

		got := int64(len(resp.Rows))
		offset += got
		if got == 0 || got < c.pageSize || (resp.RowCount > 0 && offset >= resp.RowCount) {
			break
		}
	}

	c.logger.WithFields(logrus.Fields{"source": ga4Source, "property_id": propertyID, "rows": len(rows)}).Debug("Fetched GA4 traffic")
	return rows, nil
}

package workflow

import (
	"fmt"
	"time"

	"github.com/Kamar-Folarin/brand-sync/internal/batch"
	"github.com/Kamar-Folarin/brand-sync/internal/jobs"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
	"github.com/Kamar-Folarin/brand-sync/internal/sources"
)

// SyncAll refreshes the brand directory, then each brand's prompts, responses,
// traffic and keyword rankings. Sources without credentials are skipped.
func (s *Service) SyncAll(task *jobs.Task) (*models.JobResult, error) {
	r := newRun(task, s.logger)
	ctx := task.Context()
	params := task.Parameters()
	totals := r.result.SyncAll
	jobID := task.JobID()

	if s.brands == nil || !s.brands.Configured() {
		return nil, fmt.Errorf("brand platform: %w", sources.ErrNotConfigured)
	}

	// brands
	r.report(phaseBrands.Start, phaseBrands.Label, -1, 0)
	directory, err := s.brands.ListBrands(ctx)
	if err != nil {
		return nil, fmt.Errorf("brand directory unavailable: %w", err)
	}
	now := s.now()
	for _, b := range directory {
		b.Touch(jobID, now)
	}
	n, err := batch.Process(ctx, s.batch, directory, s.store.UpsertBrands, func(p batch.Progress) {
		r.report(phaseBrands.At(p.ProcessedItems, p.TotalItems), phaseBrands.Label, p.TotalItems, p.ProcessedItems)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store brand directory: %w", err)
	}
	totals.Brands = n
	r.report(phaseBrands.End(), phaseBrands.Label, len(directory), len(directory))

	targets, err := selectBrand(directory, params.BrandID)
	if err != nil {
		return nil, err
	}
	if err := r.checkCancelled(); err != nil {
		return nil, err
	}

	// prompts
	err = runPhase(r, phasePrompts, targets, brandEntity, func(b *models.Brand) (entityResult, error) {
		prompts, err := s.brands.ListPrompts(ctx, b.ID)
		if err != nil {
			return entityResult{}, err
		}
		for _, p := range prompts {
			p.Touch(jobID, s.now())
		}
		n, err := upsert(ctx, s, "prompts", prompts, s.store.UpsertPrompts)
		totals.Prompts += n
		return entityResult{Records: n, Counts: map[string]int{"prompts": n}}, err
	})
	if err != nil {
		return nil, err
	}

	// responses
	since := s.responsesSince(params)
	if since != nil {
		r.result.SetDetail("responses_since", since.UTC().Format(time.RFC3339))
	}
	err = runPhase(r, phaseResponses, targets, brandEntity, func(b *models.Brand) (entityResult, error) {
		responses, err := s.brands.ListResponses(ctx, b.ID, since)
		if err != nil {
			return entityResult{}, err
		}
		for _, resp := range responses {
			resp.Touch(jobID, s.now())
		}
		n, err := upsert(ctx, s, "responses", responses, s.store.UpsertResponses)
		totals.Responses += n
		if err == nil {
			s.notifyBrand(jobID, b.ID)
		}
		return entityResult{Records: n, Counts: map[string]int{"responses": n}}, err
	})
	if err != nil {
		return nil, err
	}

	// GA4 traffic
	if s.traffic == nil || !s.traffic.Configured() {
		totals.SkippedSources = append(totals.SkippedSources, "ga4")
		r.skip(phaseTraffic, "GA4 not configured, skipping traffic")
	} else {
		start, end := s.dateRange(params)
		if err := runPhase(r, phaseTraffic, withGA4Property(targets), brandEntity, s.syncTraffic(ctx, jobID, start, end, func(rows int) {
			totals.TrafficRows += rows
		})); err != nil {
			return nil, err
		}
	}

	// Agency Analytics rankings
	if s.rankings == nil || !s.rankings.Configured() {
		totals.SkippedSources = append(totals.SkippedSources, "agency_analytics")
		r.skip(phaseRankings, "Agency Analytics not configured, skipping rankings")
	} else {
		err := runPhase(r, phaseRankings, withCampaign(targets), brandEntity, func(b *models.Brand) (entityResult, error) {
			campaign := &models.Campaign{ID: b.AgencyAnalyticsCampaignID, Name: b.Name, Domain: b.Domain, BrandID: b.ID}
			campaign.Touch(jobID, s.now())
			if _, err := upsert(ctx, s, "campaigns", []*models.Campaign{campaign}, s.store.UpsertCampaigns); err != nil {
				return entityResult{}, err
			}
			n, err := s.syncRankings(ctx, jobID, campaign.ID)
			totals.KeywordRankings += n
			return entityResult{Records: n, Counts: map[string]int{"keyword_rankings": n}}, err
		})
		if err != nil {
			return nil, err
		}
	}

	return r.finish(), nil
}

func withGA4Property(brands []*models.Brand) []*models.Brand {
	var out []*models.Brand
	for _, b := range brands {
		if b.GA4PropertyID != "" {
			out = append(out, b)
		}
	}
	return out
}

// withoutGA4Property returns the IDs of brands that have no GA4 property
func withoutGA4Property(brands []*models.Brand) []string {
	var out []string
	for _, b := range brands {
		if b.GA4PropertyID == "" {
			out = append(out, b.ID)
		}
	}
	return out
}

func withCampaign(brands []*models.Brand) []*models.Brand {
	var out []*models.Brand
	for _, b := range brands {
		if b.AgencyAnalyticsCampaignID != "" {
			out = append(out, b)
		}
	}
	return out
}

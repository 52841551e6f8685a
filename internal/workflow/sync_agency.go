package workflow

import (
	"context"
	"fmt"

	"github.com/Kamar-Folarin/brand-sync/internal/batch"
	"github.com/Kamar-Folarin/brand-sync/internal/jobs"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
	"github.com/Kamar-Folarin/brand-sync/internal/sources"
)

// SyncAgencyAnalytics stores every campaign and then each campaign's keyword rankings
func (s *Service) SyncAgencyAnalytics(task *jobs.Task) (*models.JobResult, error) {
	r := newRun(task, s.logger)
	ctx := task.Context()
	params := task.Parameters()
	totals := r.result.AgencyAnalytics
	jobID := task.JobID()

	if s.rankings == nil || !s.rankings.Configured() {
		return nil, fmt.Errorf("agency analytics: %w", sources.ErrNotConfigured)
	}

	// campaigns
	r.report(phaseCampaigns.Start, phaseCampaigns.Label, -1, 0)
	campaigns, err := s.rankings.ListCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("campaign list unavailable: %w", err)
	}

	brands, err := s.directory(ctx, jobID)
	if err != nil {
		return nil, err
	}
	campaigns, err = linkCampaigns(campaigns, brands, params.BrandID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, c := range campaigns {
		c.Touch(jobID, now)
	}
	n, err := batch.Process(ctx, s.batch, campaigns, s.store.UpsertCampaigns, func(p batch.Progress) {
		r.report(phaseCampaigns.At(p.ProcessedItems, p.TotalItems), phaseCampaigns.Label, p.TotalItems, p.ProcessedItems)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store campaigns: %w", err)
	}
	totals.Campaigns = n
	r.report(phaseCampaigns.End(), phaseCampaigns.Label, len(campaigns), len(campaigns))

	// rankings
	err = runPhase(r, phaseCampaignRanking, campaigns, func(c *models.Campaign) entity {
		return entity{Type: "campaign", ID: c.ID, Name: c.Name}
	}, func(c *models.Campaign) (entityResult, error) {
		n, err := s.syncRankings(ctx, jobID, c.ID)
		totals.Rankings += n
		if err == nil && c.BrandID != "" {
			s.notifyBrand(jobID, c.BrandID)
		}
		return entityResult{Records: n, Counts: map[string]int{"keyword_rankings": n}}, err
	})
	if err != nil {
		return nil, err
	}
	return r.finish(), nil
}

// syncRankings fetches and stores the rankings of one campaign
func (s *Service) syncRankings(ctx context.Context, jobID, campaignID string) (int, error) {
	rankings, err := s.rankings.ListRankings(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	for _, kr := range rankings {
		kr.Touch(jobID, now)
	}
	return upsert(ctx, s, "keyword_rankings", rankings, s.store.UpsertKeywordRankings)
}

// linkCampaigns attaches brand ids to campaigns and, when brandID is set,
// keeps only that brand's campaign
func linkCampaigns(campaigns []*models.Campaign, brands []*models.Brand, brandID string) ([]*models.Campaign, error) {
	owner := make(map[string]string, len(brands))
	for _, b := range brands {
		if b.AgencyAnalyticsCampaignID != "" {
			owner[b.AgencyAnalyticsCampaignID] = b.ID
		}
	}
	for _, c := range campaigns {
		if c.BrandID == "" {
			c.BrandID = owner[c.ID]
		}
	}
	if brandID == "" {
		return campaigns, nil
	}

	var out []*models.Campaign
	for _, c := range campaigns {
		if c.BrandID == brandID {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no Agency Analytics campaign linked to brand %s", brandID)
	}
	return out, nil
}

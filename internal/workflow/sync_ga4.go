package workflow

import (
	"context"
	"fmt"

	"github.com/Kamar-Folarin/brand-sync/internal/jobs"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
	"github.com/Kamar-Folarin/brand-sync/internal/sources"
)

// SyncGA4 pulls the traffic report of every brand with a GA4 property
func (s *Service) SyncGA4(task *jobs.Task) (*models.JobResult, error) {
	r := newRun(task, s.logger)
	ctx := task.Context()
	params := task.Parameters()
	totals := r.result.GA4

	if s.traffic == nil || !s.traffic.Configured() {
		return nil, fmt.Errorf("ga4: %w", sources.ErrNotConfigured)
	}

	brands, err := s.directory(ctx, task.JobID())
	if err != nil {
		return nil, err
	}
	targets, err := selectBrand(brands, params.BrandID)
	if err != nil {
		return nil, err
	}
	if missing := withoutGA4Property(targets); len(missing) > 0 {
		r.result.SetDetail("brands_without_property", missing)
	}
	targets = withGA4Property(targets)

	start, end := s.dateRange(params)
	totals.StartDate, totals.EndDate = start, end

	err = runPhase(r, phaseProperties, targets, func(b *models.Brand) entity {
		return entity{Type: "ga4_property", ID: b.GA4PropertyID, Name: b.Name}
	}, s.syncTraffic(ctx, task.JobID(), start, end, func(rows int) {
		totals.Properties++
		totals.Rows += rows
	}))
	if err != nil {
		return nil, err
	}
	return r.finish(), nil
}

// syncTraffic fetches and stores one brand's traffic report. onSuccess is
// called with the number of rows written.
func (s *Service) syncTraffic(ctx context.Context, jobID, start, end string, onSuccess func(rows int)) func(*models.Brand) (entityResult, error) {
	return func(b *models.Brand) (entityResult, error) {
		rows, err := s.traffic.FetchTraffic(ctx, b.GA4PropertyID, b.ID, start, end)
		if err != nil {
			return entityResult{}, err
		}
		for _, row := range rows {
			row.Touch(jobID, s.now())
		}
		n, err := upsert(ctx, s, "traffic_rows", rows, s.store.UpsertTrafficRows)
		if err != nil {
			return entityResult{Records: n}, err
		}
		onSuccess(n)
		s.notifyBrand(jobID, b.ID)
		return entityResult{Records: n, Counts: map[string]int{"traffic_rows": n}}, nil
	}
}

package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/brand-sync/internal/batch"
	"github.com/Kamar-Folarin/brand-sync/internal/config"
	"github.com/Kamar-Folarin/brand-sync/internal/db"
	apperrors "github.com/Kamar-Folarin/brand-sync/internal/errors"
	"github.com/Kamar-Folarin/brand-sync/internal/jobs"
	"github.com/Kamar-Folarin/brand-sync/internal/metrics"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
	"github.com/Kamar-Folarin/brand-sync/internal/notify"
)

const dateLayout = "2006-01-02"

// Service runs the sync workflows against the configured sources
type Service struct {
	store    db.ContentStore
	brands   BrandSource
	traffic  TrafficSource
	rankings RankingSource
	notifier notify.Notifier
	batch    *batch.Processor
	cfg      config.SyncConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewService creates a workflow service
func NewService(store db.ContentStore, brands BrandSource, traffic TrafficSource, rankings RankingSource,
	notifier notify.Notifier, cfg config.SyncConfig, logger *logrus.Logger) *Service {
	return &Service{
		store:    store,
		brands:   brands,
		traffic:  traffic,
		rankings: rankings,
		notifier: notifier,
		batch:    batch.NewProcessor(cfg.BatchConfig),
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WorkFor returns the workflow that implements syncType
func (s *Service) WorkFor(syncType models.SyncType) (jobs.WorkFunc, error) {
	switch syncType {
	case models.SyncTypeAll:
		return s.SyncAll, nil
	case models.SyncTypeGA4:
		return s.SyncGA4, nil
	case models.SyncTypeAgencyAnalytics:
		return s.SyncAgencyAnalytics, nil
	}
	return nil, apperrors.NewValidationError(fmt.Sprintf("unknown sync type: %s", syncType), nil)
}

// ValidateParameters rejects parameters a workflow cannot run with
func ValidateParameters(p models.JobParameters) error {
	for name, v := range map[string]string{"start_date": p.StartDate, "end_date": p.EndDate} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, v); err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("%s must be YYYY-MM-DD", name), err)
		}
	}
	if p.StartDate != "" && p.EndDate != "" && p.StartDate > p.EndDate {
		return apperrors.NewValidationError("start_date must not be after end_date", nil)
	}
	return nil
}

// dateRange resolves the reporting window, defaulting to the configured lookback
func (s *Service) dateRange(p models.JobParameters) (string, string) {
	today := s.now()
	start, end := p.StartDate, p.EndDate
	if end == "" {
		end = today.Format(dateLayout)
	}
	if start == "" {
		start = today.AddDate(0, 0, -s.lookbackDays()).Format(dateLayout)
	}
	return start, end
}

// responsesSince is the lower bound for incremental response syncs
func (s *Service) responsesSince(p models.JobParameters) *time.Time {
	if p.FullResync {
		return nil
	}
	if p.StartDate != "" {
		if t, err := time.Parse(dateLayout, p.StartDate); err == nil {
			return &t
		}
	}
	t := s.now().AddDate(0, 0, -s.lookbackDays())
	return &t
}

func (s *Service) lookbackDays() int {
	if s.cfg.DefaultLookbackDays > 0 {
		return s.cfg.DefaultLookbackDays
	}
	return 30
}

// upsert writes records in batches and counts them
func upsert[T any](ctx context.Context, s *Service, recordType string, items []T, write func(context.Context, []T) error) (int, error) {
	n, err := batch.Process(ctx, s.batch, items, write, nil)
	if n > 0 {
		metrics.RecordsSynced.WithLabelValues(recordType).Add(float64(n))
	}
	if err != nil {
		return n, fmt.Errorf("failed to store %s: %w", recordType, err)
	}
	return n, nil
}

// directory returns the stored brand directory, refreshing it from the brand
// platform when nothing has been stored yet
func (s *Service) directory(ctx context.Context, jobID string) ([]*models.Brand, error) {
	brands, err := s.store.ListBrands(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load brand directory: %w", err)
	}
	if len(brands) > 0 || s.brands == nil || !s.brands.Configured() {
		return brands, nil
	}

	brands, err = s.brands.ListBrands(ctx)
	if err != nil {
		return nil, fmt.Errorf("brand directory unavailable: %w", err)
	}
	now := s.now()
	for _, b := range brands {
		b.Touch(jobID, now)
	}
	if _, err := upsert(ctx, s, "brands", brands, s.store.UpsertBrands); err != nil {
		return nil, err
	}
	return brands, nil
}

// selectBrand narrows brands to brandID when one was requested
func selectBrand(brands []*models.Brand, brandID string) ([]*models.Brand, error) {
	if brandID == "" {
		return brands, nil
	}
	for _, b := range brands {
		if b.ID == brandID {
			return []*models.Brand{b}, nil
		}
	}
	return nil, apperrors.NewResourceNotFoundError("brand", brandID)
}

func (s *Service) notifyBrand(jobID string, brandID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastToSubscribers("brand", notify.ResourceID(brandID),
		notify.ResourceUpdated("brand", notify.ResourceID(brandID), "sync:"+jobID, 0), "")
}

func brandEntity(b *models.Brand) entity {
	return entity{Type: "brand", ID: b.ID, Name: b.Name}
}

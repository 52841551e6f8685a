package db

import (
	"context"
	"sort"
	"sync"

	"github.com/Kamar-Folarin/brand-sync/internal/models"
)

// Ensure the stores implement the interface.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

// MemoryStore is an in-memory Store. It applies the same lifecycle guard as
// the Postgres store and is used for local runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	jobs      map[string]*models.SyncJob
	brands    map[string]models.Brand
	prompts   map[string]models.Prompt
	responses map[string]models.Response
	traffic   map[string]models.TrafficRow
	campaigns map[string]models.Campaign
	rankings  map[string]models.KeywordRanking
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]*models.SyncJob),
		brands:    make(map[string]models.Brand),
		prompts:   make(map[string]models.Prompt),
		responses: make(map[string]models.Response),
		traffic:   make(map[string]models.TrafficRow),
		campaigns: make(map[string]models.Campaign),
		rankings:  make(map[string]models.KeywordRanking),
	}
}

func (s *MemoryStore) CreateJob(_ context.Context, job *models.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.JobID]; ok {
		return ErrDuplicateJob
	}
	stored := job.Clone()
	stored.Progress = models.ClampProgress(stored.Progress)
	s.jobs[job.JobID] = stored
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, jobID string) (*models.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, jobID string, u models.JobUpdate) (*models.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	if !u.Permits(job.Status) {
		return nil, ErrJobFinalized
	}
	u.Apply(job)
	return job.Clone(), nil
}

func (s *MemoryStore) ListJobs(_ context.Context, filter models.JobFilter) ([]*models.SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := []*models.SyncJob{}
	for _, job := range s.jobs {
		if filter.OwnerID != "" && job.Owner.UserID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.SyncType != "" && job.SyncType != filter.SyncType {
			continue
		}
		jobs = append(jobs, job.Clone())
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].JobID < jobs[j].JobID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if filter.Limit > 0 && len(jobs) > filter.Limit {
		jobs = jobs[:filter.Limit]
	}
	return jobs, nil
}

func (s *MemoryStore) UpsertBrands(_ context.Context, brands []*models.Brand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range brands {
		s.brands[b.ID] = *b
	}
	return nil
}

func (s *MemoryStore) ListBrands(_ context.Context) ([]*models.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	brands := make([]*models.Brand, 0, len(s.brands))
	for _, b := range s.brands {
		b := b
		brands = append(brands, &b)
	}
	sort.Slice(brands, func(i, j int) bool {
		if brands[i].Name == brands[j].Name {
			return brands[i].ID < brands[j].ID
		}
		return brands[i].Name < brands[j].Name
	})
	return brands, nil
}

func (s *MemoryStore) UpsertPrompts(_ context.Context, prompts []*models.Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range prompts {
		s.prompts[p.ID] = *p
	}
	return nil
}

func (s *MemoryStore) UpsertResponses(_ context.Context, responses []*models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range responses {
		s.responses[r.ID] = *r
	}
	return nil
}

func (s *MemoryStore) UpsertTrafficRows(_ context.Context, rows []*models.TrafficRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.traffic[r.PropertyID+"|"+r.Date+"|"+r.Channel] = *r
	}
	return nil
}

func (s *MemoryStore) UpsertCampaigns(_ context.Context, campaigns []*models.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range campaigns {
		s.campaigns[c.ID] = *c
	}
	return nil
}

func (s *MemoryStore) UpsertKeywordRankings(_ context.Context, rankings []*models.KeywordRanking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range rankings {
		s.rankings[k.CampaignID+"|"+k.Keyword+"|"+k.SearchEngine+"|"+k.Date] = *k
	}
	return nil
}

// Counts reports how many records of each kind are stored
func (s *MemoryStore) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"jobs":             len(s.jobs),
		"brands":           len(s.brands),
		"prompts":          len(s.prompts),
		"responses":        len(s.responses),
		"traffic_rows":     len(s.traffic),
		"campaigns":        len(s.campaigns),
		"keyword_rankings": len(s.rankings),
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

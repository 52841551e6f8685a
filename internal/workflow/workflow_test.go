package workflow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kamar-Folarin/brand-sync/internal/config"
	"github.com/Kamar-Folarin/brand-sync/internal/db"
	"github.com/Kamar-Folarin/brand-sync/internal/jobs"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
	"github.com/Kamar-Folarin/brand-sync/internal/notify"
	"github.com/Kamar-Folarin/brand-sync/internal/sources"
)

type fakeBrands struct {
	configured   bool
	brands       []*models.Brand
	directoryErr error
	promptErrs   map[string]error
	onPrompts    func(brandID string)
	mu           sync.Mutex
	since        []*time.Time
	prompted     []string
}

func (f *fakeBrands) Configured() bool { return f.configured }

func (f *fakeBrands) ListBrands(context.Context) ([]*models.Brand, error) {
	if f.directoryErr != nil {
		return nil, f.directoryErr
	}
	out := make([]*models.Brand, 0, len(f.brands))
	for _, b := range f.brands {
		c := *b
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeBrands) ListPrompts(_ context.Context, brandID string) ([]*models.Prompt, error) {
	f.mu.Lock()
	f.prompted = append(f.prompted, brandID)
	f.mu.Unlock()
	if f.onPrompts != nil {
		f.onPrompts(brandID)
	}
	if err := f.promptErrs[brandID]; err != nil {
		return nil, err
	}
	return []*models.Prompt{
		{ID: brandID + "-p1", BrandID: brandID, Text: "best running shoes?"},
		{ID: brandID + "-p2", BrandID: brandID, Text: "top trail shoes?"},
	}, nil
}

func (f *fakeBrands) ListResponses(_ context.Context, brandID string, since *time.Time) ([]*models.Response, error) {
	f.mu.Lock()
	f.since = append(f.since, since)
	f.mu.Unlock()
	return []*models.Response{{ID: brandID + "-r1", PromptID: brandID + "-p1", BrandID: brandID, Model: "gpt-4o", Mentioned: true}}, nil
}

type fakeTraffic struct {
	configured bool
	errs       map[string]error
	mu         sync.Mutex
	calls      []string
}

func (f *fakeTraffic) Configured() bool { return f.configured }

func (f *fakeTraffic) FetchTraffic(_ context.Context, propertyID, brandID, start, end string) ([]*models.TrafficRow, error) {
	f.mu.Lock()
	f.calls = append(f.calls, propertyID+"|"+start+"|"+end)
	f.mu.Unlock()
	if err := f.errs[propertyID]; err != nil {
		return nil, err
	}
	return []*models.TrafficRow{
		{PropertyID: propertyID, BrandID: brandID, Date: "20260101", Channel: "Organic Search", Sessions: 10},
		{PropertyID: propertyID, BrandID: brandID, Date: "20260101", Channel: "Direct", Sessions: 4},
	}, nil
}

type fakeRankings struct {
	configured bool
	campaigns  []*models.Campaign
	errs       map[string]error
}

func (f *fakeRankings) Configured() bool { return f.configured }

func (f *fakeRankings) ListCampaigns(context.Context) ([]*models.Campaign, error) {
	out := make([]*models.Campaign, 0, len(f.campaigns))
	for _, c := range f.campaigns {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeRankings) ListRankings(_ context.Context, campaignID string) ([]*models.KeywordRanking, error) {
	if err := f.errs[campaignID]; err != nil {
		return nil, err
	}
	rank := 3
	return []*models.KeywordRanking{{CampaignID: campaignID, Keyword: "running shoes", SearchEngine: "google", Rank: &rank, Date: "2026-01-01"}}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []notify.Message
	updates  []notify.Message
}

func (n *recordingNotifier) BroadcastToAll(msg notify.Message) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, msg)
	return 1
}

func (n *recordingNotifier) BroadcastToSubscribers(_ string, _ notify.ResourceID, msg notify.Message, _ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, msg)
	return 1
}

func (n *recordingNotifier) progressFor(jobID string) []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []int
	for _, m := range n.statuses {
		if m.JobID == jobID && m.Progress != nil {
			out = append(out, *m.Progress)
		}
	}
	return out
}

func brandFixtures(n int) []*models.Brand {
	ids := []string{"b1", "b2", "b3", "b4", "b5"}
	out := make([]*models.Brand, 0, n)
	for _, id := range ids[:n] {
		out = append(out, &models.Brand{
			ID:                        id,
			Name:                      "Brand " + id,
			GA4PropertyID:             "prop-" + id,
			AgencyAnalyticsCampaignID: "camp-" + id,
		})
	}
	return out
}

type harness struct {
	engine   *jobs.Engine
	service  *Service
	store    *db.MemoryStore
	notifier *recordingNotifier
	brands   *fakeBrands
	traffic  *fakeTraffic
	rankings *fakeRankings
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := *config.DefaultSyncConfig()
	cfg.BatchConfig.RetryDelay = time.Millisecond
	cfg.BatchConfig.MaxRetries = 0

	h := &harness{
		store:    db.NewMemoryStore(),
		notifier: &recordingNotifier{},
		brands:   &fakeBrands{configured: true, brands: brandFixtures(5)},
		traffic:  &fakeTraffic{configured: true},
		rankings: &fakeRankings{configured: true},
	}
	for _, b := range h.brands.brands {
		h.rankings.campaigns = append(h.rankings.campaigns, &models.Campaign{ID: b.AgencyAnalyticsCampaignID, Name: b.Name})
	}
	h.engine = jobs.NewEngine(h.store, h.notifier, cfg, logger)
	h.service = NewService(h.store, h.brands, h.traffic, h.rankings, h.notifier, cfg, logger)
	h.service.now = func() time.Time { return time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC) }

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.engine.Shutdown(ctx)
	})
	return h
}

func (h *harness) run(t *testing.T, syncType models.SyncType, params models.JobParameters) *models.SyncJob {
	t.Helper()
	work, err := h.service.WorkFor(syncType)
	require.NoError(t, err)
	job, err := h.engine.Submit(context.Background(), syncType, models.Owner{UserID: "alice"}, params, work)
	require.NoError(t, err)

	var final *models.SyncJob
	require.Eventually(t, func() bool {
		j, err := h.engine.GetJob(context.Background(), job.JobID)
		if err != nil || !j.Status.IsTerminal() || h.engine.Registry().IsRunning(job.JobID) {
			return false
		}
		final = j
		return true
	}, 3*time.Second, 5*time.Millisecond)
	return final
}

func assertMonotonic(t *testing.T, values []int) {
	t.Helper()
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress went backwards at %d: %v", i, values)
	}
}

func TestSyncAll_FullRun(t *testing.T) {
	h := newHarness(t)
	job := h.run(t, models.SyncTypeAll, models.JobParameters{})

	require.Equal(t, models.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, models.RunStatusCompleted, job.Result.Status)

	totals := job.Result.SyncAll
	require.NotNil(t, totals)
	assert.Equal(t, 5, totals.Brands)
	assert.Equal(t, 10, totals.Prompts)
	assert.Equal(t, 5, totals.Responses)
	assert.Equal(t, "2026-03-01T12:00:00Z", job.Result.Details["responses_since"])
	assert.Equal(t, 10, totals.TrafficRows)
	assert.Equal(t, 5, totals.KeywordRankings)
	assert.Empty(t, totals.SkippedSources)

	counts := h.store.Counts()
	assert.Equal(t, 5, counts["brands"])
	assert.Equal(t, 10, counts["prompts"])
	assert.Equal(t, 5, counts["campaigns"])

	progress := h.notifier.progressFor(job.JobID)
	assertMonotonic(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
	assert.NotEmpty(t, h.notifier.updates)
}

func (f *fakeBrands) promptedBrands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompted...)
}

func TestSyncAll_CancelStopsAtEntityBoundary(t *testing.T) {
	h := newHarness(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	h.brands.onPrompts = func(brandID string) {
		if brandID == "b2" {
			close(entered)
			<-release
		}
	}

	work, err := h.service.WorkFor(models.SyncTypeAll)
	require.NoError(t, err)
	job, err := h.engine.Submit(context.Background(), models.SyncTypeAll, models.Owner{UserID: "alice"}, models.JobParameters{}, work)
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(3 * time.Second):
		t.Fatal("sync never reached the second brand")
	}

	type cancelOutcome struct {
		confirmed bool
		err       error
	}
	outcome := make(chan cancelOutcome, 1)
	go func() {
		confirmed, err := h.engine.CancelJob(context.Background(), job.JobID)
		outcome <- cancelOutcome{confirmed, err}
	}()

	require.Eventually(t, func() bool {
		return h.engine.Registry().IsCancelled(job.JobID)
	}, 3*time.Second, 5*time.Millisecond)
	close(release)

	var res cancelOutcome
	select {
	case res = <-outcome:
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not return")
	}
	require.NoError(t, res.err)
	assert.True(t, res.confirmed)

	final, err := h.engine.GetJob(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, final.Status)
	require.NotNil(t, final.CompletedAt)

	assert.Equal(t, []string{"b1", "b2"}, h.brands.promptedBrands())
	assert.Empty(t, h.brands.since)
	assert.Empty(t, h.engine.Registry().RunningJobs())
	assert.Empty(t, h.engine.Registry().CancelledJobs())
}

func TestSyncAll_EntityFailureIsIsolated(t *testing.T) {
	h := newHarness(t)
	h.brands.promptErrs = map[string]error{
		"b3": sources.NewAPIError("brand-platform", http.StatusInternalServerError, "upstream exploded", nil),
	}

	job := h.run(t, models.SyncTypeAll, models.JobParameters{})

	require.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, models.RunStatusPartial, job.Result.Status)
	assert.Equal(t, 1, job.Result.Summary.Failed)

	var promptOutcomes []models.EntityOutcome
	for _, o := range job.Result.Entities {
		if o.Phase == "prompts" {
			promptOutcomes = append(promptOutcomes, o)
		}
	}
	require.Len(t, promptOutcomes, 5)
	for _, o := range promptOutcomes {
		if o.EntityID == "b3" {
			assert.Equal(t, models.EntityFailed, o.Status)
			assert.Contains(t, o.Error, "upstream exploded")
		} else {
			assert.Equal(t, models.EntitySucceeded, o.Status, o.EntityID)
			assert.Equal(t, 2, o.Records)
		}
	}
	assert.Equal(t, 8, job.Result.SyncAll.Prompts)
	assert.Equal(t, 5, job.Result.SyncAll.Responses, "later phases still run for the failed brand")
}

func TestSyncAll_SystemicErrorFailsJob(t *testing.T) {
	h := newHarness(t)
	h.brands.promptErrs = map[string]error{
		"b2": sources.NewAPIError("brand-platform", http.StatusUnauthorized, "bad api key", nil),
	}

	job := h.run(t, models.SyncTypeAll, models.JobParameters{})
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "bad api key")
	assert.Nil(t, job.Result)
}

func TestSyncAll_DirectoryFailureFailsJob(t *testing.T) {
	h := newHarness(t)
	h.brands.directoryErr = errors.New("connection refused")

	job := h.run(t, models.SyncTypeAll, models.JobParameters{})
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "brand directory unavailable")
}

func TestSyncAll_SkipsUnconfiguredSources(t *testing.T) {
	h := newHarness(t)
	h.traffic.configured = false
	h.rankings.configured = false

	job := h.run(t, models.SyncTypeAll, models.JobParameters{})
	require.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, []string{"ga4", "agency_analytics"}, job.Result.SyncAll.SkippedSources)
	assert.Zero(t, job.Result.SyncAll.TrafficRows)
	assert.Empty(t, h.traffic.calls)
	assert.Equal(t, 100, job.Progress)
}

func TestSyncAll_SingleBrand(t *testing.T) {
	h := newHarness(t)
	job := h.run(t, models.SyncTypeAll, models.JobParameters{BrandID: "b4", FullResync: true})

	require.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 5, job.Result.SyncAll.Brands, "the directory is always refreshed")
	assert.Equal(t, 2, job.Result.SyncAll.Prompts)
	require.Len(t, h.brands.since, 1)
	assert.Nil(t, h.brands.since[0], "full resync fetches every response")
}

func TestSyncAll_UnknownBrandFails(t *testing.T) {
	h := newHarness(t)
	job := h.run(t, models.SyncTypeAll, models.JobParameters{BrandID: "nope"})
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "nope")
}

func TestSyncGA4_UsesStoredDirectoryAndDateRange(t *testing.T) {
	h := newHarness(t)
	h.traffic.errs = map[string]error{
		"prop-b2": sources.NewAPIError("ga4", http.StatusBadRequest, "invalid property", nil),
	}

	job := h.run(t, models.SyncTypeGA4, models.JobParameters{})
	require.Equal(t, models.JobStatusCompleted, job.Status)

	totals := job.Result.GA4
	require.NotNil(t, totals)
	assert.Equal(t, 4, totals.Properties)
	assert.Equal(t, 8, totals.Rows)
	assert.Equal(t, "2026-03-01", totals.StartDate)
	assert.Equal(t, "2026-03-31", totals.EndDate)
	assert.Equal(t, models.RunStatusPartial, job.Result.Status)
	assert.Contains(t, h.traffic.calls, "prop-b1|2026-03-01|2026-03-31")
	assert.Equal(t, 5, h.store.Counts()["brands"], "directory was fetched because none was stored")
	assertMonotonic(t, h.notifier.progressFor(job.JobID))
}

func TestSyncGA4_RecordsBrandsWithoutProperty(t *testing.T) {
	h := newHarness(t)
	h.brands.brands[1].GA4PropertyID = ""
	h.brands.brands[3].GA4PropertyID = ""

	job := h.run(t, models.SyncTypeGA4, models.JobParameters{})
	require.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.Result.GA4.Properties)
	assert.Equal(t, []string{"b2", "b4"}, job.Result.Details["brands_without_property"])
	assert.Len(t, h.traffic.calls, 3)
}

func TestSyncAll_FullResyncHasNoResponseBound(t *testing.T) {
	h := newHarness(t)
	job := h.run(t, models.SyncTypeAll, models.JobParameters{FullResync: true})
	require.Equal(t, models.JobStatusCompleted, job.Status)
	assert.NotContains(t, job.Result.Details, "responses_since")
}

func TestSyncGA4_NotConfiguredFails(t *testing.T) {
	h := newHarness(t)
	h.traffic.configured = false

	job := h.run(t, models.SyncTypeGA4, models.JobParameters{})
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "not configured")
}

func TestSyncAgencyAnalytics_LinksCampaignsToBrands(t *testing.T) {
	h := newHarness(t)
	h.rankings.errs = map[string]error{"camp-b5": errors.New("timeout")}

	job := h.run(t, models.SyncTypeAgencyAnalytics, models.JobParameters{})
	require.Equal(t, models.JobStatusCompleted, job.Status)

	totals := job.Result.AgencyAnalytics
	require.NotNil(t, totals)
	assert.Equal(t, 5, totals.Campaigns)
	assert.Equal(t, 4, totals.Rankings)
	assert.Equal(t, models.RunStatusPartial, job.Result.Status)
	assertMonotonic(t, h.notifier.progressFor(job.JobID))
}

func TestSyncAgencyAnalytics_SingleBrand(t *testing.T) {
	h := newHarness(t)
	job := h.run(t, models.SyncTypeAgencyAnalytics, models.JobParameters{BrandID: "b2"})
	require.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.Result.AgencyAnalytics.Campaigns)
	assert.Equal(t, 1, job.Result.AgencyAnalytics.Rankings)
}

func TestSyncAgencyAnalytics_NotConfiguredFails(t *testing.T) {
	h := newHarness(t)
	h.rankings.configured = false
	job := h.run(t, models.SyncTypeAgencyAnalytics, models.JobParameters{})
	assert.Equal(t, models.JobStatusFailed, job.Status)
}

func TestWorkFor_UnknownType(t *testing.T) {
	h := newHarness(t)
	_, err := h.service.WorkFor(models.SyncType("rebuild"))
	assert.Error(t, err)
}

func TestValidateParameters(t *testing.T) {
	assert.NoError(t, ValidateParameters(models.JobParameters{}))
	assert.NoError(t, ValidateParameters(models.JobParameters{StartDate: "2026-01-01", EndDate: "2026-01-31"}))
	assert.Error(t, ValidateParameters(models.JobParameters{StartDate: "01/01/2026"}))
	assert.Error(t, ValidateParameters(models.JobParameters{StartDate: "2026-02-01", EndDate: "2026-01-01"}))
}

func TestPhaseAt(t *testing.T) {
	p := Phase{Start: 10, Weight: 30}
	assert.Equal(t, 10, p.At(0, 10))
	assert.Equal(t, 19, p.At(3, 10))
	assert.Equal(t, 40, p.At(10, 10))
	assert.Equal(t, 40, p.At(0, 0), "empty phases count as finished")
	assert.Equal(t, 40, p.At(12, 10))
	assert.Equal(t, 100, Phase{Start: 90, Weight: 30}.End())
}

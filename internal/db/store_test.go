package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kamar-Folarin/brand-sync/internal/models"
)

func newJob(id, owner string, created time.Time) *models.SyncJob {
	return &models.SyncJob{
		JobID:      id,
		SyncType:   models.SyncTypeAll,
		Owner:      models.Owner{UserID: owner, Email: owner + "@example.com"},
		Status:     models.JobStatusPending,
		Parameters: models.JobParameters{BrandID: "42"},
		CreatedAt:  created,
	}
}

func statusPtr(s models.JobStatus) *models.JobStatus { return &s }
func intPtr(v int) *int                              { return &v }
func strPtr(v string) *string                        { return &v }

// testJobStore exercises the behaviour every JobStore must share
func testJobStore(t *testing.T, store JobStore) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("create and get", func(t *testing.T) {
		require.NoError(t, store.CreateJob(ctx, newJob("job-a", "u1", base)))

		job, err := store.GetJob(ctx, "job-a")
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusPending, job.Status)
		assert.Equal(t, "u1", job.Owner.UserID)
		assert.Equal(t, "42", job.Parameters.BrandID)

		assert.True(t, errors.Is(store.CreateJob(ctx, newJob("job-a", "u1", base)), ErrDuplicateJob))
	})

	t.Run("missing job", func(t *testing.T) {
		_, err := store.GetJob(ctx, "nope")
		assert.True(t, errors.Is(err, ErrJobNotFound))

		_, err = store.UpdateJob(ctx, "nope", models.JobUpdate{Progress: intPtr(5)})
		assert.True(t, errors.Is(err, ErrJobNotFound))
	})

	t.Run("lifecycle guard", func(t *testing.T) {
		require.NoError(t, store.CreateJob(ctx, newJob("job-b", "u1", base.Add(time.Second))))

		_, err := store.UpdateJob(ctx, "job-b", models.JobUpdate{Status: statusPtr(models.JobStatusCompleted)})
		assert.True(t, errors.Is(err, ErrJobFinalized), "pending cannot complete")

		started := base.Add(2 * time.Second)
		job, err := store.UpdateJob(ctx, "job-b", models.JobUpdate{Status: statusPtr(models.JobStatusRunning), StartedAt: &started})
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusRunning, job.Status)

		job, err = store.UpdateJob(ctx, "job-b", models.JobUpdate{Progress: intPtr(37), CurrentStep: strPtr("Syncing prompts"), TotalSteps: intPtr(5), CompletedSteps: intPtr(2)})
		require.NoError(t, err)
		assert.Equal(t, 37, job.Progress)
		assert.Equal(t, 2, *job.CompletedSteps)

		_, err = store.UpdateJob(ctx, "job-b", models.JobUpdate{Status: statusPtr(models.JobStatusCancelled)})
		require.NoError(t, err)

		_, err = store.UpdateJob(ctx, "job-b", models.JobUpdate{Progress: intPtr(90)})
		assert.True(t, errors.Is(err, ErrJobFinalized), "late progress write")
		_, err = store.UpdateJob(ctx, "job-b", models.JobUpdate{Status: statusPtr(models.JobStatusCompleted)})
		assert.True(t, errors.Is(err, ErrJobFinalized))

		job, err = store.GetJob(ctx, "job-b")
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCancelled, job.Status)
		assert.Equal(t, 37, job.Progress)
	})

	t.Run("result round trip", func(t *testing.T) {
		require.NoError(t, store.CreateJob(ctx, newJob("job-c", "u2", base.Add(3*time.Second))))
		_, err := store.UpdateJob(ctx, "job-c", models.JobUpdate{Status: statusPtr(models.JobStatusRunning)})
		require.NoError(t, err)

		result := models.NewJobResult(models.SyncTypeAll)
		result.Record(models.EntityOutcome{Phase: "prompts", EntityType: "brand", EntityID: "42", Status: models.EntitySucceeded, Records: 7})
		result.SyncAll.Prompts = 7
		done := base.Add(4 * time.Second)
		_, err = store.UpdateJob(ctx, "job-c", models.JobUpdate{
			Status: statusPtr(models.JobStatusCompleted), Progress: intPtr(100), Result: result, CompletedAt: &done,
		})
		require.NoError(t, err)

		job, err := store.GetJob(ctx, "job-c")
		require.NoError(t, err)
		require.NotNil(t, job.Result)
		assert.Equal(t, 7, job.Result.SyncAll.Prompts)
		assert.Equal(t, 1, job.Result.Summary.Succeeded)
		require.NotNil(t, job.CompletedAt)
	})

	t.Run("list newest first", func(t *testing.T) {
		jobs, err := store.ListJobs(ctx, models.JobFilter{OwnerID: "u1"})
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, "job-b", jobs[0].JobID)
		assert.Equal(t, "job-a", jobs[1].JobID)

		jobs, err = store.ListJobs(ctx, models.JobFilter{OwnerID: "u1", Status: models.JobStatusPending})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "job-a", jobs[0].JobID)

		jobs, err = store.ListJobs(ctx, models.JobFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "job-c", jobs[0].JobID)
	})
}

// testContentStore checks that upserts are keyed on natural ids
func testContentStore(t *testing.T, store ContentStore) {
	ctx := context.Background()

	brands := []*models.Brand{
		{ID: "b2", Name: "Zeta", Domain: "zeta.io"},
		{ID: "b1", Name: "Acme", Domain: "acme.com", GA4PropertyID: "123"},
	}
	require.NoError(t, store.UpsertBrands(ctx, brands))
	brands[1].Domain = "acme.io"
	require.NoError(t, store.UpsertBrands(ctx, brands[1:]))

	listed, err := store.ListBrands(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "Acme", listed[0].Name)
	assert.Equal(t, "acme.io", listed[0].Domain)
	assert.Equal(t, "123", listed[0].GA4PropertyID)

	now := time.Now().UTC()
	prompts := []*models.Prompt{{ID: "p1", BrandID: "b1", Text: "best anvils?", CreatedAt: now}}
	require.NoError(t, store.UpsertPrompts(ctx, prompts))
	require.NoError(t, store.UpsertPrompts(ctx, prompts))

	pos := 2
	require.NoError(t, store.UpsertResponses(ctx, []*models.Response{
		{ID: "r1", PromptID: "p1", BrandID: "b1", Model: "gpt", Text: "Acme", Mentioned: true, Position: &pos, RespondedAt: now},
	}))
	require.NoError(t, store.UpsertTrafficRows(ctx, []*models.TrafficRow{
		{PropertyID: "123", BrandID: "b1", Date: "20240101", Channel: "Organic Search", Sessions: 10},
		{PropertyID: "123", BrandID: "b1", Date: "20240101", Channel: "Organic Search", Sessions: 12},
	}))
	require.NoError(t, store.UpsertCampaigns(ctx, []*models.Campaign{{ID: "c1", Name: "Acme SEO", BrandID: "b1"}}))
	require.NoError(t, store.UpsertKeywordRankings(ctx, []*models.KeywordRanking{
		{CampaignID: "c1", Keyword: "anvils", SearchEngine: "google", Date: "2024-01-01", Rank: &pos},
	}))
}

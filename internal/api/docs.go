package api

import (
	"time"

	_ "github.com/Kamar-Folarin/brand-sync/docs"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
)

// ErrorResponse represents an API error
// @Description Error response from the API
// @swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	Error string `json:"error" example:"sync job not found"`
	// Error type
	Type string `json:"type" example:"NOT_FOUND" enums:"NOT_FOUND,FORBIDDEN,INVALID_INPUT,CONFLICT,UNAUTHORIZED,INTERNAL,RATE_LIMIT"`
}

// SyncRequest holds the optional parameters of a sync trigger
// @Description Parameters for starting a sync
// @swagger:model SyncRequest
type SyncRequest struct {
	// Restrict the sync to one brand
	BrandID string `json:"brand_id,omitempty" example:"42"`
	// First day of the reporting window (YYYY-MM-DD)
	StartDate string `json:"start_date,omitempty" example:"2026-01-01"`
	// Last day of the reporting window (YYYY-MM-DD)
	EndDate string `json:"end_date,omitempty" example:"2026-01-31"`
	// Ignore the incremental lookback and fetch everything
	FullResync bool `json:"full_resync,omitempty"`
}

func (r SyncRequest) parameters() models.JobParameters {
	return models.JobParameters{
		BrandID:    r.BrandID,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
		FullResync: r.FullResync,
	}
}

// SyncAcceptedResponse is returned when a sync job was queued
// @Description A queued sync job
// @swagger:model SyncAcceptedResponse
type SyncAcceptedResponse struct {
	JobID    string `json:"job_id" example:"0b8f1c2e-6a43-4f0e-9c55-2f1d7e9a3b10"`
	SyncType string `json:"sync_type" example:"sync_all"`
	Status   string `json:"status" example:"pending"`
}

// SyncJob is the job record returned by the API
// @Description The durable record of one sync invocation
// @swagger:model SyncJob
type SyncJob struct {
	JobID          string               `json:"job_id" example:"0b8f1c2e-6a43-4f0e-9c55-2f1d7e9a3b10"`
	SyncType       string               `json:"sync_type" example:"sync_ga4" enums:"sync_all,sync_ga4,sync_agency_analytics"`
	Status         string               `json:"status" example:"running" enums:"pending,running,completed,failed,cancelled"`
	Progress       int                  `json:"progress" example:"45"`
	CurrentStep    string               `json:"current_step,omitempty" example:"Syncing prompts (3/10)"`
	TotalSteps     *int                 `json:"total_steps,omitempty" example:"10"`
	CompletedSteps *int                 `json:"completed_steps,omitempty" example:"3"`
	Parameters     models.JobParameters `json:"parameters"`
	Result         *models.JobResult    `json:"result,omitempty"`
	ErrorMessage   string               `json:"error_message,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	StartedAt      *time.Time           `json:"started_at,omitempty"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
}

func toSyncJob(j *models.SyncJob) SyncJob {
	return SyncJob{
		JobID:          j.JobID,
		SyncType:       string(j.SyncType),
		Status:         string(j.Status),
		Progress:       j.Progress,
		CurrentStep:    j.CurrentStep,
		TotalSteps:     j.TotalSteps,
		CompletedSteps: j.CompletedSteps,
		Parameters:     j.Parameters,
		Result:         j.Result,
		ErrorMessage:   j.ErrorMessage,
		CreatedAt:      j.CreatedAt,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
	}
}

// JobListResponse is a page of the caller's jobs
// @Description The caller's sync jobs, newest first
// @swagger:model JobListResponse
type JobListResponse struct {
	Data  []SyncJob `json:"data"`
	Limit int       `json:"limit" example:"20"`
}

// CancelResponse reports the outcome of a cancel request
// @Description Result of a cancel request
// @swagger:model CancelResponse
type CancelResponse struct {
	JobID     string `json:"job_id"`
	Cancelled bool   `json:"cancelled" example:"true"`
	// False when the running task did not stop within the cancel timeout
	Confirmed bool `json:"confirmed" example:"true"`
}

// HealthResponse is the liveness probe body
// @swagger:model HealthResponse
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/brand-sync/internal/auth"
	apperrors "github.com/Kamar-Folarin/brand-sync/internal/errors"
	"github.com/Kamar-Folarin/brand-sync/internal/jobs"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
	"github.com/Kamar-Folarin/brand-sync/internal/workflow"
)

// JobService is the job engine as seen by the API
type JobService interface {
	GetJob(ctx context.Context, jobID string) (*models.SyncJob, error)
	GetJobsForOwner(ctx context.Context, owner models.Owner, filter models.JobFilter) ([]*models.SyncJob, error)
	CancelJob(ctx context.Context, jobID string) (bool, error)
	Submit(ctx context.Context, syncType models.SyncType, owner models.Owner, params models.JobParameters, work jobs.WorkFunc) (*models.SyncJob, error)
}

// WorkflowProvider resolves the work function of a sync type
type WorkflowProvider interface {
	WorkFor(syncType models.SyncType) (jobs.WorkFunc, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	jobs      JobService
	workflows WorkflowProvider
	health    Pinger
	logger    *logrus.Logger
}

func NewHandler(jobService JobService, workflows WorkflowProvider, health Pinger, logger *logrus.Logger) *Handler {
	return &Handler{
		jobs:      jobService,
		workflows: workflows,
		health:    health,
		logger:    logger,
	}
}

// GetJob returns one of the caller's jobs
// @Summary Get sync job
// @Description Get the current state of a sync job
// @Tags jobs
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Job ID"
// @Success 200 {object} SyncJob
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sync/jobs/{id} [get]
func (h *Handler) GetJob(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toSyncJob(job))
}

// ListJobs returns the caller's jobs, newest first
// @Summary List sync jobs
// @Description List the caller's sync jobs with optional filters
// @Tags jobs
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Filter by status" Enums(pending,running,completed,failed,cancelled)
// @Param sync_type query string false "Filter by sync type" Enums(sync_all,sync_ga4,sync_agency_analytics)
// @Param limit query int false "Maximum jobs to return" default(20) maximum(100)
// @Success 200 {object} JobListResponse
// @Failure 400 {object} ErrorResponse
// @Router /sync/jobs [get]
func (h *Handler) ListJobs(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	filter := models.JobFilter{}
	if s := c.Query("status"); s != "" {
		filter.Status = models.JobStatus(s)
		if !filter.Status.Valid() {
			h.respondWithError(c, apperrors.NewValidationError("invalid status: "+s, nil))
			return
		}
	}
	if s := c.Query("sync_type"); s != "" {
		filter.SyncType = models.SyncType(s)
		if !filter.SyncType.Valid() {
			h.respondWithError(c, apperrors.NewValidationError("invalid sync_type: "+s, nil))
			return
		}
	}
	limit, err := getIntQueryParam(c, "limit", jobs.DefaultListLimit)
	if err != nil || limit < 0 {
		h.respondWithError(c, apperrors.NewValidationError("invalid limit parameter", err))
		return
	}
	filter.Limit = jobs.NormalizeLimit(limit)

	list, err := h.jobs.GetJobsForOwner(c.Request.Context(), owner, filter)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	resp := JobListResponse{Data: make([]SyncJob, 0, len(list)), Limit: filter.Limit}
	for _, j := range list {
		resp.Data = append(resp.Data, toSyncJob(j))
	}
	c.JSON(http.StatusOK, resp)
}

// CancelJob cancels one of the caller's pending or running jobs
// @Summary Cancel sync job
// @Description Cancel a pending or running sync job. Returns 202 when the running task has not yet stopped.
// @Tags jobs
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Job ID"
// @Success 200 {object} CancelResponse
// @Success 202 {object} CancelResponse
// @Failure 400 {object} ErrorResponse "Job already finished"
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sync/jobs/{id}/cancel [post]
func (h *Handler) CancelJob(c *gin.Context) {
	job, ok := h.ownedJob(c)
	if !ok {
		return
	}

	confirmed, err := h.jobs.CancelJob(c.Request.Context(), job.JobID)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	status := http.StatusOK
	if !confirmed {
		status = http.StatusAccepted
	}
	c.JSON(status, CancelResponse{JobID: job.JobID, Cancelled: true, Confirmed: confirmed})
}

// SyncAll starts a full sync
// @Summary Sync everything
// @Description Sync the brand directory, prompts, responses, GA4 traffic and keyword rankings
// @Tags sync
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body SyncRequest false "Sync parameters"
// @Success 202 {object} SyncAcceptedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "An identical sync is already running"
// @Router /sync/all [post]
func (h *Handler) SyncAll(c *gin.Context) {
	h.startSync(c, models.SyncTypeAll)
}

// SyncGA4 starts a GA4 traffic sync
// @Summary Sync GA4 traffic
// @Description Pull the GA4 traffic report for every brand with a linked property
// @Tags sync
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body SyncRequest false "Sync parameters"
// @Success 202 {object} SyncAcceptedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sync/ga4 [post]
func (h *Handler) SyncGA4(c *gin.Context) {
	h.startSync(c, models.SyncTypeGA4)
}

// SyncAgencyAnalytics starts a campaign and keyword ranking sync
// @Summary Sync Agency Analytics
// @Description Pull campaigns and keyword rankings from Agency Analytics
// @Tags sync
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body SyncRequest false "Sync parameters"
// @Success 202 {object} SyncAcceptedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sync/agency-analytics [post]
func (h *Handler) SyncAgencyAnalytics(c *gin.Context) {
	h.startSync(c, models.SyncTypeAgencyAnalytics)
}

func (h *Handler) startSync(c *gin.Context, syncType models.SyncType) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondWithError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}
	params := req.parameters()
	if err := workflow.ValidateParameters(params); err != nil {
		h.respondWithError(c, err)
		return
	}

	work, err := h.workflows.WorkFor(syncType)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	job, err := h.jobs.Submit(c.Request.Context(), syncType, owner, params, work)
	if err != nil {
		h.respondWithError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job_id":    job.JobID,
		"sync_type": syncType,
		"user_id":   owner.UserID,
	}).Info("Sync requested")
	c.JSON(http.StatusAccepted, SyncAcceptedResponse{JobID: job.JobID, SyncType: string(syncType), Status: string(job.Status)})
}

// Health reports whether the service and its store are reachable
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /healthz [get]
func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health.Ping(c.Request.Context()); err != nil {
			h.logger.WithError(err).Warn("Health check failed")
			c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (h *Handler) owner(c *gin.Context) (models.Owner, bool) {
	owner, ok := auth.OwnerFrom(c)
	if !ok {
		h.respondWithError(c, apperrors.NewUnauthorizedError("authentication required", nil))
	}
	return owner, ok
}

// ownedJob loads the :id job and checks that the caller requested it
func (h *Handler) ownedJob(c *gin.Context) (*models.SyncJob, bool) {
	owner, ok := h.owner(c)
	if !ok {
		return nil, false
	}
	job, err := h.jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondWithError(c, err)
		return nil, false
	}
	if err := jobs.CheckOwner(job, owner); err != nil {
		h.respondWithError(c, err)
		return nil, false
	}
	return job, true
}

// statusFor maps an error to its HTTP status
func statusFor(err error) int {
	switch {
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case apperrors.IsForbidden(err):
		return http.StatusForbidden
	case apperrors.IsValidationError(err):
		return http.StatusBadRequest
	case apperrors.IsConflict(err):
		return http.StatusConflict
	case apperrors.IsUnauthorized(err):
		return http.StatusUnauthorized
	case apperrors.IsRateLimit(err):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondWithError(c *gin.Context, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: errorMessage(err), Type: string(apperrors.TypeOf(err))}

	var inProgress *apperrors.SyncInProgressError
	if errors.As(err, &inProgress) {
		resp.Type = string(apperrors.ErrConflict)
	}
	var notFound *apperrors.NotFoundError
	if errors.As(err, &notFound) {
		resp.Type = string(apperrors.ErrNotFound)
	}

	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		resp.Error = "internal server error"
	}
	c.AbortWithStatusJSON(status, resp)
}

// errorMessage returns the user-facing part of err
func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func getIntQueryParam(c *gin.Context, param string, defaultValue int) (int, error) {
	value := c.Query(param)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

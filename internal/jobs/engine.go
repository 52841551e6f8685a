package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/brand-sync/internal/config"
	"github.com/Kamar-Folarin/brand-sync/internal/db"
	apperrors "github.com/Kamar-Folarin/brand-sync/internal/errors"
	"github.com/Kamar-Folarin/brand-sync/internal/metrics"
	"github.com/Kamar-Folarin/brand-sync/internal/models"
	"github.com/Kamar-Folarin/brand-sync/internal/notify"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// WorkFunc is the body of a job. It returns the result stored on completion;
// an error fails the job.
type WorkFunc func(task *Task) (*models.JobResult, error)

// StatusUpdate is a partial progress update. Nil fields are left untouched.
type StatusUpdate struct {
	Status         *models.JobStatus
	Progress       *int
	CurrentStep    *string
	TotalSteps     *int
	CompletedSteps *int
	Message        string
}

func (u StatusUpdate) jobUpdate() models.JobUpdate {
	return models.JobUpdate{
		Status:         u.Status,
		Progress:       u.Progress,
		CurrentStep:    u.CurrentStep,
		TotalSteps:     u.TotalSteps,
		CompletedSteps: u.CompletedSteps,
	}
}

// Engine owns the lifecycle of sync jobs: it persists them, runs each on its
// own goroutine, and broadcasts every status change
type Engine struct {
	store    db.JobStore
	notifier notify.Notifier
	registry *Registry
	cfg      config.SyncConfig
	logger   *logrus.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup
	now        func() time.Time
}

// NewEngine creates a job engine
func NewEngine(store db.JobStore, notifier notify.Notifier, cfg config.SyncConfig, logger *logrus.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:      store,
		notifier:   notifier,
		registry:   NewRegistry(),
		cfg:        cfg,
		logger:     logger,
		rootCtx:    ctx,
		rootCancel: cancel,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Registry exposes the engine's cancellation registry
func (e *Engine) Registry() *Registry { return e.registry }

// CreateJob inserts a pending job. It does not start it.
func (e *Engine) CreateJob(ctx context.Context, syncType models.SyncType, owner models.Owner, params models.JobParameters) (string, error) {
	job, err := e.createJob(ctx, uuid.NewString(), syncType, owner, params)
	if err != nil {
		return "", err
	}
	return job.JobID, nil
}

func (e *Engine) createJob(ctx context.Context, jobID string, syncType models.SyncType, owner models.Owner, params models.JobParameters) (*models.SyncJob, error) {
	if !syncType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown sync type: %s", syncType), nil)
	}
	if owner.UserID == "" {
		return nil, apperrors.NewValidationError("owner is required", nil)
	}

	job := &models.SyncJob{
		JobID:      jobID,
		SyncType:   syncType,
		Owner:      owner,
		Status:     models.JobStatusPending,
		Parameters: params,
		CreatedAt:  e.now(),
	}
	if err := e.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create sync job: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"job_id":    jobID,
		"sync_type": syncType,
		"user_id":   owner.UserID,
	}).Info("Created sync job")
	return job, nil
}

// Submit creates and starts a job. With single-flight enabled a second
// identical sync is rejected while the first still runs.
func (e *Engine) Submit(ctx context.Context, syncType models.SyncType, owner models.Owner, params models.JobParameters, work WorkFunc) (*models.SyncJob, error) {
	jobID := uuid.NewString()
	if e.cfg.SingleFlight {
		if holder, ok := e.registry.Claim(FlightKey(syncType, params.BrandID), jobID); !ok {
			return nil, apperrors.NewSyncInProgressError(string(syncType), params.BrandID, holder)
		}
	}

	job, err := e.createJob(ctx, jobID, syncType, owner, params)
	if err != nil {
		e.registry.Release(jobID)
		return nil, err
	}
	if err := e.StartExecution(jobID, work); err != nil {
		e.registry.Release(jobID)
		return nil, err
	}
	return job, nil
}

// FlightKey identifies syncs that must not overlap
func FlightKey(syncType models.SyncType, brandID string) string {
	if brandID == "" {
		return string(syncType) + ":*"
	}
	return string(syncType) + ":" + brandID
}

// StartExecution runs work for a pending job on its own goroutine
func (e *Engine) StartExecution(jobID string, work WorkFunc) error {
	if err := e.rootCtx.Err(); err != nil {
		return apperrors.NewInternalError("engine is shutting down", err)
	}
	job, err := e.store.GetJob(e.rootCtx, jobID)
	if err != nil {
		return e.mapStoreError(jobID, err)
	}
	if job.Status != models.JobStatusPending {
		return apperrors.NewValidationError(fmt.Sprintf("job %s is %s, not pending", jobID, job.Status), nil)
	}

	task := newTask(e.rootCtx, job, e.UpdateStatus)
	e.registry.Register(task)
	e.wg.Add(1)
	go e.run(task, work)
	return nil
}

func (e *Engine) run(task *Task, work WorkFunc) {
	defer e.wg.Done()
	defer close(task.done)
	defer e.registry.Deregister(task.jobID)

	ctx := task.ctx
	log := e.logger.WithFields(logrus.Fields{"job_id": task.jobID, "sync_type": task.syncType})

	if e.registry.IsCancelled(task.jobID) {
		log.Info("Job cancelled before start")
		return
	}

	started := e.now()
	running := models.JobStatusRunning
	step := "Starting"
	job, err := e.store.UpdateJob(ctx, task.jobID, models.JobUpdate{Status: &running, StartedAt: &started, CurrentStep: &step})
	if err != nil {
		if errors.Is(err, db.ErrJobFinalized) {
			log.Info("Job left pending before start")
		} else {
			log.WithError(err).Error("Failed to mark job running")
		}
		return
	}
	e.broadcast(job, "Sync started")

	metrics.JobsStarted.WithLabelValues(string(task.syncType)).Inc()
	metrics.JobsRunning.Inc()
	defer func() {
		metrics.JobsRunning.Dec()
		metrics.JobDuration.WithLabelValues(string(task.syncType)).Observe(time.Since(started).Seconds())
	}()

	result, err := e.execute(task, work, log)

	if task.Cancelled() {
		e.finishCancelled(ctx, task, log)
		return
	}
	if err != nil {
		log.WithError(err).Error("Sync job failed")
		if ferr := e.FailJob(ctx, task.jobID, err.Error()); ferr != nil {
			log.WithError(ferr).Warn("Failed to record job failure")
		}
		return
	}
	if cerr := e.CompleteJob(ctx, task.jobID, result); cerr != nil {
		log.WithError(cerr).Warn("Failed to record job completion")
	}
}

// execute calls work and turns a panic into an error
func (e *Engine) execute(task *Task, work WorkFunc, log *logrus.Entry) (result *models.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("Sync job panicked: %v", r)
			err = fmt.Errorf("sync job panicked: %v", r)
		}
	}()
	return work(task)
}

// finishCancelled makes sure the record says cancelled when the task stopped
// because of a cancel request that was signalled before its write landed
func (e *Engine) finishCancelled(ctx context.Context, task *Task, log *logrus.Entry) {
	cancelled := models.JobStatusCancelled
	now := e.now()
	step := "Cancelled"
	job, err := e.store.UpdateJob(ctx, task.jobID, models.JobUpdate{Status: &cancelled, CompletedAt: &now, CurrentStep: &step})
	switch {
	case err == nil:
		metrics.JobsFinished.WithLabelValues(string(task.syncType), string(cancelled)).Inc()
		e.broadcast(job, "Sync cancelled")
	case errors.Is(err, db.ErrJobFinalized):
	default:
		log.WithError(err).Warn("Failed to record job cancellation")
	}
	log.Info("Sync job stopped after cancellation")
}

// UpdateStatus applies a partial update and broadcasts the new state. Terminal
// statuses are only reachable through CompleteJob, FailJob and CancelJob.
func (e *Engine) UpdateStatus(ctx context.Context, jobID string, u StatusUpdate) error {
	if u.Status != nil && u.Status.IsTerminal() {
		return apperrors.NewValidationError(fmt.Sprintf("status %s must be set with CompleteJob, FailJob or CancelJob", *u.Status), nil)
	}
	job, err := e.store.UpdateJob(ctx, jobID, u.jobUpdate())
	if err != nil {
		return e.mapStoreError(jobID, err)
	}
	e.broadcast(job, u.Message)
	return nil
}

// CompleteJob marks the job completed with progress 100 and stores result
func (e *Engine) CompleteJob(ctx context.Context, jobID string, result *models.JobResult) error {
	completed := models.JobStatusCompleted
	progress := 100
	now := e.now()
	step := "Completed"
	job, err := e.store.UpdateJob(ctx, jobID, models.JobUpdate{
		Status:      &completed,
		Progress:    &progress,
		CurrentStep: &step,
		Result:      result,
		CompletedAt: &now,
	})
	if err != nil {
		return e.mapStoreError(jobID, err)
	}

	metrics.JobsFinished.WithLabelValues(string(job.SyncType), string(completed)).Inc()
	msg := "Sync completed"
	if result != nil && result.Status == models.RunStatusPartial {
		msg = fmt.Sprintf("Sync completed with %d failed item(s)", result.Summary.Failed)
	}
	e.logger.WithFields(logrus.Fields{"job_id": jobID, "sync_type": job.SyncType}).Info(msg)
	e.broadcast(job, msg)
	return nil
}

// FailJob marks the job failed with message
func (e *Engine) FailJob(ctx context.Context, jobID, message string) error {
	failed := models.JobStatusFailed
	now := e.now()
	job, err := e.store.UpdateJob(ctx, jobID, models.JobUpdate{
		Status:       &failed,
		ErrorMessage: &message,
		CompletedAt:  &now,
	})
	if err != nil {
		return e.mapStoreError(jobID, err)
	}
	metrics.JobsFinished.WithLabelValues(string(job.SyncType), string(failed)).Inc()
	e.broadcast(job, message)
	return nil
}

// CancelJob cancels a pending or running job. The bool reports whether the
// task's teardown was confirmed within the configured timeout.
func (e *Engine) CancelJob(ctx context.Context, jobID string) (bool, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return false, e.mapStoreError(jobID, err)
	}
	if job.Status.IsTerminal() {
		return false, apperrors.NewValidationError(fmt.Sprintf("job %s is already %s", jobID, job.Status), nil)
	}

	e.registry.MarkCancelled(jobID)

	cancelled := models.JobStatusCancelled
	now := e.now()
	step := "Cancelled"
	updated, err := e.store.UpdateJob(ctx, jobID, models.JobUpdate{Status: &cancelled, CompletedAt: &now, CurrentStep: &step})
	if err != nil {
		if !errors.Is(err, db.ErrJobFinalized) {
			e.registry.AwaitTeardown(ctx, jobID, 0)
			return false, e.mapStoreError(jobID, err)
		}
		// the wrapper may have recorded the cancellation itself
		current, gerr := e.store.GetJob(ctx, jobID)
		if gerr != nil || current.Status != models.JobStatusCancelled {
			e.registry.AwaitTeardown(ctx, jobID, 0)
			return false, apperrors.NewValidationError(fmt.Sprintf("job %s already finished", jobID), err)
		}
		return e.registry.AwaitTeardown(ctx, jobID, e.cfg.CancelTimeout), nil
	}

	metrics.JobsFinished.WithLabelValues(string(updated.SyncType), string(cancelled)).Inc()
	e.broadcast(updated, "Sync cancelled")

	confirmed := e.registry.AwaitTeardown(ctx, jobID, e.cfg.CancelTimeout)
	e.logger.WithFields(logrus.Fields{"job_id": jobID, "confirmed": confirmed}).Info("Cancelled sync job")
	return confirmed, nil
}

// GetJob returns one job
func (e *Engine) GetJob(ctx context.Context, jobID string) (*models.SyncJob, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, e.mapStoreError(jobID, err)
	}
	return job, nil
}

// GetJobsForOwner lists the owner's jobs, newest first
func (e *Engine) GetJobsForOwner(ctx context.Context, owner models.Owner, filter models.JobFilter) ([]*models.SyncJob, error) {
	filter.OwnerID = owner.UserID
	filter.Limit = NormalizeLimit(filter.Limit)
	jobs, err := e.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync jobs: %w", err)
	}
	return jobs, nil
}

// NormalizeLimit applies the default and maximum page size
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// CheckOwner returns a forbidden error unless owner requested job
func CheckOwner(job *models.SyncJob, owner models.Owner) error {
	if job.Owner.UserID != owner.UserID {
		return apperrors.NewForbiddenError("sync job belongs to another user", nil)
	}
	return nil
}

// Shutdown cancels every running job, waits for their goroutines, then
// cancels the context their I/O runs under
func (e *Engine) Shutdown(ctx context.Context) error {
	for _, jobID := range e.registry.RunningJobs() {
		if _, err := e.CancelJob(ctx, jobID); err != nil && !apperrors.IsValidationError(err) {
			e.logger.WithError(err).WithField("job_id", jobID).Warn("Failed to cancel job during shutdown")
		}
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	defer e.rootCancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sync jobs still running at shutdown: %w", ctx.Err())
	}
}

func (e *Engine) broadcast(job *models.SyncJob, message string) {
	if e.notifier == nil {
		return
	}
	progress := job.Progress
	e.notifier.BroadcastToAll(notify.SyncStatusMessage(notify.SyncStatus{
		SyncType: string(job.SyncType),
		BrandID:  job.Parameters.BrandID,
		JobID:    job.JobID,
		Status:   string(job.Status),
		Message:  message,
		Progress: &progress,
	}))
}

func (e *Engine) mapStoreError(jobID string, err error) error {
	switch {
	case errors.Is(err, db.ErrJobNotFound):
		return apperrors.NewNotFoundError(fmt.Sprintf("sync job %s not found", jobID), err)
	case errors.Is(err, db.ErrJobFinalized):
		return apperrors.NewValidationError(fmt.Sprintf("sync job %s is finalized", jobID), err)
	default:
		return fmt.Errorf("sync job %s: %w", jobID, err)
	}
}
